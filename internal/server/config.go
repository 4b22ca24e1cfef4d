package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/blackjack/internal/blackjack"
)

// Config is the complete server configuration
type Config struct {
	Server ServerSettings
	Hub    HubSettings
	Table  TableSettings
}

// ServerSettings contains listener and logging configuration
type ServerSettings struct {
	Address        string   `hcl:"address,optional"`
	Port           int      `hcl:"port,optional"`
	LogLevel       string   `hcl:"log_level,optional"`
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
}

// HubSettings sizes the connection registry queues
type HubSettings struct {
	QueueSize  int `hcl:"queue_size,optional"`
	SendBuffer int `hcl:"send_buffer,optional"`
	TimeoutMs  int `hcl:"timeout_ms,optional"`
}

// TableSettings configures every table the server creates
type TableSettings struct {
	Decks          int
	WinRule        string
	DealerStandsOn int
	// ReshuffleBelow rebuilds the shoe before a round when fewer cards
	// remain. Zero disables it.
	ReshuffleBelow int
	Seed           *int64
}

// fileConfig mirrors Config with optional blocks for decoding
type fileConfig struct {
	Server *ServerSettings    `hcl:"server,block"`
	Hub    *HubSettings       `hcl:"hub,block"`
	Table  *fileTableSettings `hcl:"table,block"`
}

type fileTableSettings struct {
	Decks          int    `hcl:"decks,optional"`
	WinRule        string `hcl:"win_rule,optional"`
	DealerStandsOn int    `hcl:"dealer_stands_on,optional"`
	ReshuffleBelow *int   `hcl:"reshuffle_below,optional"`
	Seed           *int64 `hcl:"seed,optional"`
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Hub: HubSettings{
			QueueSize:  256,
			SendBuffer: 256,
			TimeoutMs:  5000,
		},
		Table: TableSettings{
			Decks:          blackjack.DefaultDecks,
			WinRule:        blackjack.RuleStandard.String(),
			DealerStandsOn: 17,
			ReshuffleBelow: 52,
		},
	}
}

// LoadConfig loads configuration from an HCL file. A missing file yields
// the defaults.
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
	if fc.Server != nil {
		config.Server.merge(*fc.Server)
	}
	if fc.Hub != nil {
		config.Hub.merge(*fc.Hub)
	}
	if fc.Table != nil {
		config.Table.merge(*fc.Table)
	}
	return config, nil
}

func (s *ServerSettings) merge(o ServerSettings) {
	if o.Address != "" {
		s.Address = o.Address
	}
	if o.Port != 0 {
		s.Port = o.Port
	}
	if o.LogLevel != "" {
		s.LogLevel = o.LogLevel
	}
	if len(o.AllowedOrigins) > 0 {
		s.AllowedOrigins = o.AllowedOrigins
	}
}

func (h *HubSettings) merge(o HubSettings) {
	if o.QueueSize != 0 {
		h.QueueSize = o.QueueSize
	}
	if o.SendBuffer != 0 {
		h.SendBuffer = o.SendBuffer
	}
	if o.TimeoutMs != 0 {
		h.TimeoutMs = o.TimeoutMs
	}
}

func (t *TableSettings) merge(o fileTableSettings) {
	if o.Decks != 0 {
		t.Decks = o.Decks
	}
	if o.WinRule != "" {
		t.WinRule = o.WinRule
	}
	if o.DealerStandsOn != 0 {
		t.DealerStandsOn = o.DealerStandsOn
	}
	if o.ReshuffleBelow != nil {
		t.ReshuffleBelow = *o.ReshuffleBelow
	}
	if o.Seed != nil {
		t.Seed = o.Seed
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Hub.QueueSize < 1 {
		return fmt.Errorf("hub queue size must be positive, got %d", c.Hub.QueueSize)
	}
	if c.Hub.SendBuffer < 1 {
		return fmt.Errorf("hub send buffer must be positive, got %d", c.Hub.SendBuffer)
	}
	if c.Hub.TimeoutMs < 1 {
		return fmt.Errorf("hub timeout must be positive, got %dms", c.Hub.TimeoutMs)
	}
	if c.Table.Decks < 1 || c.Table.Decks > 16 {
		return fmt.Errorf("table decks must be between 1 and 16, got %d", c.Table.Decks)
	}
	if _, err := blackjack.ParseWinRule(c.Table.WinRule); err != nil {
		return fmt.Errorf("table: %w", err)
	}
	if c.Table.DealerStandsOn < 12 || c.Table.DealerStandsOn > blackjack.Blackjack {
		return fmt.Errorf("dealer must stand between 12 and 21, got %d", c.Table.DealerStandsOn)
	}
	if c.Table.ReshuffleBelow < 0 {
		return fmt.Errorf("reshuffle threshold cannot be negative, got %d", c.Table.ReshuffleBelow)
	}
	return nil
}

// ListenAddress returns the host:port to listen on
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// HubTimeout returns how long a connection waits on a hub command
func (c *Config) HubTimeout() time.Duration {
	return time.Duration(c.Hub.TimeoutMs) * time.Millisecond
}

// Rule returns the parsed win rule. Call Validate first.
func (c *Config) Rule() blackjack.WinRule {
	r, _ := blackjack.ParseWinRule(c.Table.WinRule)
	return r
}
