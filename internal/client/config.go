package client

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the client configuration
type Config struct {
	Server ServerConnection
	Player PlayerSettings
	UI     UISettings
}

// ServerConnection contains server connection settings
type ServerConnection struct {
	URL            string `hcl:"url,optional"`
	ConnectTimeout int    `hcl:"connect_timeout,optional"`
	RequestTimeout int    `hcl:"request_timeout,optional"`
}

// PlayerSettings contains player-specific settings
type PlayerSettings struct {
	Name string `hcl:"name,optional"`
}

// UISettings contains terminal output settings
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	Color    *bool  `hcl:"color,optional"`
}

type fileConfig struct {
	Server *ServerConnection `hcl:"server,block"`
	Player *PlayerSettings   `hcl:"player,block"`
	UI     *UISettings       `hcl:"ui,block"`
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *Config {
	color := true
	return &Config{
		Server: ServerConnection{
			URL:            "http://localhost:8080",
			ConnectTimeout: 10,
			RequestTimeout: 30,
		},
		UI: UISettings{
			LogLevel: "warn",
			Color:    &color,
		},
	}
}

// LoadConfig loads client configuration from an HCL file. A missing file
// yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var fc fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &fc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config := DefaultConfig()
	if s := fc.Server; s != nil {
		if s.URL != "" {
			config.Server.URL = s.URL
		}
		if s.ConnectTimeout != 0 {
			config.Server.ConnectTimeout = s.ConnectTimeout
		}
		if s.RequestTimeout != 0 {
			config.Server.RequestTimeout = s.RequestTimeout
		}
	}
	if fc.Player != nil && fc.Player.Name != "" {
		config.Player.Name = fc.Player.Name
	}
	if ui := fc.UI; ui != nil {
		if ui.LogLevel != "" {
			config.UI.LogLevel = ui.LogLevel
		}
		if ui.Color != nil {
			config.UI.Color = ui.Color
		}
	}
	return config, nil
}

// Validate validates the client configuration
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.Player.Name == "" {
		return fmt.Errorf("player name is required")
	}
	if c.Server.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.UI.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	}
	return nil
}

// ConnectTimeout returns the dial timeout
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Server.ConnectTimeout) * time.Second
}

// RequestTimeout returns how long to wait for a reply
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// ColorEnabled reports whether card output should be styled
func (c *Config) ColorEnabled() bool {
	return c.UI.Color == nil || *c.UI.Color
}
