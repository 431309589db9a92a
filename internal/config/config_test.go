package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardlink/internal/logging"
)

func validConfig() *Config {
	return &Config{
		Terminal: TerminalConfig{
			Network:            "tcp",
			Address:            DefaultAddress,
			Component:          DefaultComponent,
			DialTimeout:        time.Second,
			BindTimeout:        time.Second,
			TransactionTimeout: time.Minute,
		},
	}
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("CARDLINK_SERVICE_NETWORK", "unix")
	t.Setenv("CARDLINK_SERVICE_ADDRESS", "/tmp/smartconnect.sock")
	t.Setenv("CARDLINK_TRANSACTION_TIMEOUT", "45s")
	t.Setenv("CARDLINK_BIND_TIMEOUT", "not-a-duration")
	t.Setenv("DD_API_KEY", "abc")
	t.Setenv("CARDLINK_SERVER_URL", "http://127.0.0.1:8787")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "unix", cfg.Terminal.Network)
	assert.Equal(t, "/tmp/smartconnect.sock", cfg.Terminal.Address)
	assert.Equal(t, 45*time.Second, cfg.Terminal.TransactionTimeout)
	assert.Equal(t, 10*time.Second, cfg.Terminal.BindTimeout)
	assert.True(t, cfg.Datadog.Enabled())
	assert.Equal(t, "http://127.0.0.1:8787", cfg.Server.URL)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorContains string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unsupported network", mutate: func(c *Config) { c.Terminal.Network = "udp" }, errorContains: "CARDLINK_SERVICE_NETWORK"},
		{name: "missing address", mutate: func(c *Config) { c.Terminal.Address = "" }, errorContains: "CARDLINK_SERVICE_ADDRESS"},
		{name: "component without class", mutate: func(c *Config) { c.Terminal.Component = "cn.nexgo.veslc" }, errorContains: "CARDLINK_SERVICE_COMPONENT"},
		{name: "zero bind timeout", mutate: func(c *Config) { c.Terminal.BindTimeout = 0 }, errorContains: "CARDLINK_BIND_TIMEOUT"},
		{name: "zero transaction timeout disables it", mutate: func(c *Config) { c.Terminal.TransactionTimeout = 0 }},
		{name: "negative transaction timeout", mutate: func(c *Config) { c.Terminal.TransactionTimeout = -time.Second }, errorContains: "CARDLINK_TRANSACTION_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.errorContains), err.Error())
		})
	}
}

func TestGetters(t *testing.T) {
	t.Setenv("CARDLINK_TEST_BOOL", "true")
	t.Setenv("CARDLINK_TEST_INT", "42")
	t.Setenv("CARDLINK_TEST_BAD_INT", "forty")

	assert.True(t, GetBool("CARDLINK_TEST_BOOL", false))
	assert.Equal(t, 42, GetInt("CARDLINK_TEST_INT", 0))
	assert.Equal(t, 7, GetInt("CARDLINK_TEST_BAD_INT", 7))
	assert.Equal(t, "fallback", Get("CARDLINK_TEST_MISSING", "fallback"))
}

func TestLoadTerminalCatalog(t *testing.T) {
	catalog, err := NewConfigLoader(logging.Discard()).LoadTerminalCatalog()
	require.NoError(t, err)

	name, ok := catalog.TransactionTypeName(1)
	assert.True(t, ok)
	assert.Equal(t, "sale", name)

	_, ok = catalog.TransactionTypeName(99)
	assert.False(t, ok)

	assert.Equal(t, "cancelled by user", catalog.DescribeErrorCode(-2))
	assert.Equal(t, "unknown error code -42", catalog.DescribeErrorCode(-42))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, catalog.TransactionTypeCodes())
}
