package common

import (
	"fmt"
	"os"

	"cardlink/internal/config"
	"cardlink/internal/logging"
)

type Context struct {
	BinaryName string
	Config     *config.Config
	Logger     *logging.Logger
}

func NewContext(binaryName string) (*Context, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Context{
		BinaryName: binaryName,
		Config:     cfg,
		Logger:     logging.NewLogger(logging.ParseLevel(cfg.App.LogLevel), os.Stderr, binaryName),
	}, nil
}

// Profile names the deployment profile, shown by the version command
func (c *Context) Profile() string {
	if c.Config == nil || c.Config.App.Profile == "" {
		return "default"
	}
	return c.Config.App.Profile
}
