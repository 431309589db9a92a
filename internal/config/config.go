package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultComponent identifies the SmartConnect service on Nexgo terminals.
	DefaultComponent = "cn.nexgo.veslc/cn.nexgo.inbas.smartconnect.SmartConnectService"
	DefaultAddress   = "127.0.0.1:7781"
)

var loadOnce sync.Once

// Load loads environment variables from .env files (if they exist). A profile
// file (.env.<CARDLINK_ENV>) is read first so its values win over .env.
func Load() {
	loadOnce.Do(func() {
		if profile := os.Getenv("CARDLINK_ENV"); profile != "" {
			_ = godotenv.Load(".env." + profile)
		}
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
		}
	})
}

// Get retrieves an environment variable with a default value
func Get(key, defaultValue string) string {
	Load()
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBool retrieves an environment variable as a boolean
func GetBool(key string, defaultValue bool) bool {
	if value := Get(key, ""); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetInt retrieves an environment variable as an integer
func GetInt(key string, defaultValue int) int {
	if value := Get(key, ""); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetDuration retrieves an environment variable as a time.Duration
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := Get(key, ""); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Config represents the application configuration
type Config struct {
	Terminal TerminalConfig
	Server   ServerConfig
	Datadog  DatadogConfig
	App      AppConfig
}

// TerminalConfig describes how to reach the terminal service
type TerminalConfig struct {
	Network            string
	Address            string
	Component          string
	DialTimeout        time.Duration
	BindTimeout        time.Duration
	TransactionTimeout time.Duration
}

// ServerConfig contains the HTTP ingress configuration
type ServerConfig struct {
	Addr string
	// URL points CLI commands at a running `cardlink serve`; empty runs them in-process.
	URL string
}

// DatadogConfig contains Datadog log shipping configuration
type DatadogConfig struct {
	BaseURL string
	APIKey  string
	Service string
	Source  string
	Tags    string
}

// Enabled reports whether events should be shipped to Datadog
func (d DatadogConfig) Enabled() bool {
	return d.APIKey != ""
}

// AppConfig contains general application configuration
type AppConfig struct {
	Profile  string
	LogLevel string
}

// LoadConfig loads the complete application configuration
func LoadConfig() (*Config, error) {
	Load()

	cfg := &Config{
		Terminal: TerminalConfig{
			Network:            Get("CARDLINK_SERVICE_NETWORK", "tcp"),
			Address:            Get("CARDLINK_SERVICE_ADDRESS", DefaultAddress),
			Component:          Get("CARDLINK_SERVICE_COMPONENT", DefaultComponent),
			DialTimeout:        GetDuration("CARDLINK_DIAL_TIMEOUT", 5*time.Second),
			BindTimeout:        GetDuration("CARDLINK_BIND_TIMEOUT", 10*time.Second),
			TransactionTimeout: GetDuration("CARDLINK_TRANSACTION_TIMEOUT", 120*time.Second),
		},
		Server: ServerConfig{
			Addr: Get("CARDLINK_HTTP_ADDR", "127.0.0.1:8787"),
			URL:  Get("CARDLINK_SERVER_URL", ""),
		},
		Datadog: DatadogConfig{
			BaseURL: Get("DATADOG_BASE_URL", "https://http-intake.logs.datadoghq.com"),
			APIKey:  Get("DD_API_KEY", ""),
			Service: Get("DD_SERVICE", "cardlink"),
			Source:  Get("DD_SOURCE", "cardlink"),
			Tags:    Get("DD_TAGS", ""),
		},
		App: AppConfig{
			Profile:  Get("CARDLINK_ENV", "default"),
			LogLevel: Get("APP_LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var problems []string

	switch c.Terminal.Network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		problems = append(problems, fmt.Sprintf("CARDLINK_SERVICE_NETWORK %q is not supported", c.Terminal.Network))
	}
	if c.Terminal.Address == "" {
		problems = append(problems, "CARDLINK_SERVICE_ADDRESS is required")
	}
	if !strings.Contains(c.Terminal.Component, "/") {
		problems = append(problems, "CARDLINK_SERVICE_COMPONENT must be <package>/<class>")
	}
	if c.Terminal.BindTimeout <= 0 {
		problems = append(problems, "CARDLINK_BIND_TIMEOUT must be positive")
	}
	if c.Terminal.TransactionTimeout < 0 {
		problems = append(problems, "CARDLINK_TRANSACTION_TIMEOUT must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}

	return nil
}
