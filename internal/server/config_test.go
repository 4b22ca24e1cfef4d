package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blackjack.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost:8080", cfg.ListenAddress())
	assert.Equal(t, 5*time.Second, cfg.HubTimeout())
	assert.Equal(t, blackjack.RuleStandard, cfg.Rule())
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server {
  port            = 9999
  allowed_origins = ["https://cards.example"]
}

table {
  win_rule = "legacy"
  seed     = 42
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost", cfg.Server.Address)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, []string{"https://cards.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 256, cfg.Hub.QueueSize)
	assert.Equal(t, blackjack.DefaultDecks, cfg.Table.Decks)
	assert.Equal(t, blackjack.RuleLegacy, cfg.Rule())
	assert.Equal(t, 17, cfg.Table.DealerStandsOn)
	assert.Equal(t, 52, cfg.Table.ReshuffleBelow, "omitted threshold keeps its default")
	require.NotNil(t, cfg.Table.Seed)
	assert.Equal(t, int64(42), *cfg.Table.Seed)
}

func TestLoadConfigReshuffleCanBeDisabled(t *testing.T) {
	path := writeConfig(t, `
table {
  reshuffle_below = 0
}
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Table.ReshuffleBelow)
}

func TestLoadConfigParseError(t *testing.T) {
	path := writeConfig(t, `server { port = `)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse HCL file")
}

func TestLoadConfigUnknownAttribute(t *testing.T) {
	path := writeConfig(t, `
hub {
  nonsense = true
}
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode HCL")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, errMsg: "invalid port"},
		{name: "queue size", mutate: func(c *Config) { c.Hub.QueueSize = 0 }, errMsg: "queue size"},
		{name: "send buffer", mutate: func(c *Config) { c.Hub.SendBuffer = -1 }, errMsg: "send buffer"},
		{name: "timeout", mutate: func(c *Config) { c.Hub.TimeoutMs = 0 }, errMsg: "timeout"},
		{name: "too many decks", mutate: func(c *Config) { c.Table.Decks = 17 }, errMsg: "decks"},
		{name: "no decks", mutate: func(c *Config) { c.Table.Decks = 0 }, errMsg: "decks"},
		{name: "win rule", mutate: func(c *Config) { c.Table.WinRule = "vegas" }, errMsg: "table"},
		{name: "stand total", mutate: func(c *Config) { c.Table.DealerStandsOn = 22 }, errMsg: "dealer must stand"},
		{name: "reshuffle", mutate: func(c *Config) { c.Table.ReshuffleBelow = -1 }, errMsg: "reshuffle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
