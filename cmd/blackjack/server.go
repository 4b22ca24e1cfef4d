package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/lox/blackjack/cmd/blackjack/shared"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/server"
)

// ServerCmd runs the table server
type ServerCmd struct {
	Config   string `short:"c" default:"blackjack.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" env:"BLACKJACK_ADDR" help:"Address to listen on as host:port (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	Debug    bool   `env:"BLACKJACK_DEBUG" help:"Enable debug logging"`
	Seed     *int64 `help:"Deterministic shuffle seed (overrides config)"`
	Rule     string `help:"Win rule: standard or legacy (overrides config)"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if c.Addr != "" {
		host, port, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", c.Addr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", port, err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = p
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Seed != nil {
		cfg.Table.Seed = c.Seed
	}
	if c.Rule != "" {
		cfg.Table.WinRule = c.Rule
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := shared.SetupLogger(cfg.Server.LogLevel, c.Debug)

	seed := randutil.Seed()
	if cfg.Table.Seed != nil {
		seed = *cfg.Table.Seed
		logger.Info("Using deterministic seed", "seed", seed)
	}

	s := server.NewServer(logger, cfg, server.WithRNG(randutil.New(seed)))

	ln, err := net.Listen("tcp", cfg.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress(), err)
	}

	logger.Info("Starting blackjack server",
		"addr", ln.Addr().String(),
		"decks", cfg.Table.Decks,
		"rule", cfg.Rule(),
		"dealer_stands_on", cfg.Table.DealerStandsOn)

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()

	return s.Run(ctx, ln)
}
