package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/lox/blackjack/cmd/blackjack/shared"
	"github.com/lox/blackjack/internal/client"
	"github.com/lox/blackjack/internal/protocol"
)

// ClientCmd connects to a server and reads commands from stdin
type ClientCmd struct {
	Config string `short:"c" default:"blackjack-client.hcl" help:"Path to HCL configuration file"`
	Server string `short:"s" env:"BLACKJACK_SERVER" help:"Server URL (overrides config)"`
	Name   string `short:"n" help:"Display name (defaults to $USER)"`
	Debug  bool   `env:"BLACKJACK_DEBUG" help:"Enable debug logging"`
}

func (c *ClientCmd) Run() error {
	cfg, err := client.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if c.Server != "" {
		cfg.Server.URL = strings.TrimSpace(c.Server)
	}
	if c.Name != "" {
		cfg.Player.Name = strings.TrimSpace(c.Name)
	}
	if cfg.Player.Name == "" {
		cfg.Player.Name = os.Getenv("USER")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := shared.SetupLogger(cfg.UI.LogLevel, c.Debug)
	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer connectCancel()

	wsClient := client.NewClient(cfg.Server.URL, cfg.Player.Name, logger)
	if err := wsClient.Connect(connectCtx); err != nil {
		return err
	}
	defer func() { _ = wsClient.Disconnect() }()

	r := newREPL(wsClient, client.NewRenderer(cfg.ColorEnabled()), os.Stdout)
	r.subscribe()

	fmt.Fprintf(os.Stdout, "Connected as %s. Type 'help' for commands.\n", wsClient.Identity())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-wsClient.Done():
			return errors.New("connection to server lost")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := r.exec(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				r.printf("%s\n", err)
			}
		}
	}
}

var errQuit = errors.New("quit")

const helpText = `Commands:
  create             create a new table
  remove <table>     delete an empty table
  join <table>       sit at a table
  leave              leave the current table
  start              deal a new round
  hit                take another card
  settle             play the dealer and finish the round
  say <text>         message everyone else
  tell <name> <text> message one connection (name or name#id)
  who                list connections
  quit               disconnect`

// repl maps typed commands onto client calls and prints server messages
type repl struct {
	client   *client.Client
	renderer *client.Renderer

	outMu sync.Mutex
	out   io.Writer

	mu     sync.Mutex
	roster []protocol.ConnKey
}

func newREPL(c *client.Client, renderer *client.Renderer, out io.Writer) *repl {
	return &repl{client: c, renderer: renderer, out: out}
}

func (r *repl) printf(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) subscribe() {
	r.client.AddEventHandler(protocol.TypeUpdateRoster, func(env *protocol.Envelope) {
		var roster protocol.UpdateRoster
		if err := env.Decode(&roster); err != nil {
			return
		}
		r.mu.Lock()
		r.roster = roster.Keys
		r.mu.Unlock()
		r.printf("%s\n", r.renderer.Roster(roster.Keys))
	})
	r.client.AddEventHandler(protocol.TypeTableCreated, func(env *protocol.Envelope) {
		var created protocol.TableCreated
		if err := env.Decode(&created); err == nil {
			r.printf("Created table %s\n", created.TableID)
		}
	})
	r.client.AddEventHandler(protocol.TypeTableRemoved, func(env *protocol.Envelope) {
		var removed protocol.TableRemoved
		if err := env.Decode(&removed); err == nil {
			r.printf("Removed table %s\n", removed.TableID)
		}
	})
	r.client.AddEventHandler(protocol.TypeTableState, func(env *protocol.Envelope) {
		var state protocol.TableState
		if err := env.Decode(&state); err == nil {
			r.printf("%s\n", r.renderer.TableState(state))
		}
	})
	r.client.AddEventHandler(protocol.TypeRoundResult, func(env *protocol.Envelope) {
		var result protocol.RoundResult
		if err := env.Decode(&result); err == nil {
			r.printf("%s\n", r.renderer.RoundResult(result))
		}
	})
	r.client.AddEventHandler(protocol.TypeData, func(env *protocol.Envelope) {
		var msg protocol.Data
		if err := env.Decode(&msg); err != nil {
			return
		}
		from := "?"
		if msg.From != nil {
			from = msg.From.Name
		}
		r.printf("<%s> %s\n", from, msg.Payload)
	})
	r.client.AddEventHandler(protocol.TypeError, func(env *protocol.Envelope) {
		var e protocol.Error
		if err := env.Decode(&e); err == nil {
			r.printf("%s\n", r.renderer.Error(e))
		}
	})
}

// resolve finds a roster key by "name#id" or, failing that, by name
func (r *repl) resolve(target string) (protocol.ConnKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []protocol.ConnKey
	for _, k := range r.roster {
		if k.String() == target {
			return k, nil
		}
		if k.Name == target {
			matches = append(matches, k)
		}
	}
	switch len(matches) {
	case 0:
		return protocol.ConnKey{}, fmt.Errorf("nobody called %q is connected", target)
	case 1:
		return matches[0], nil
	default:
		return protocol.ConnKey{}, fmt.Errorf("%d connections are called %q, use name#id", len(matches), target)
	}
}

func (r *repl) exec(line string) error {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "":
		return nil
	case "help", "?":
		r.printf("%s\n", helpText)
		return nil
	case "quit", "exit":
		return errQuit
	case "create":
		return r.client.CreateTable()
	case "remove":
		if rest == "" {
			return errors.New("usage: remove <table>")
		}
		return r.client.RemoveTable(rest)
	case "join":
		if rest == "" {
			return errors.New("usage: join <table>")
		}
		return r.client.JoinTable(rest)
	case "leave":
		return r.client.LeaveTable()
	case "start":
		return r.client.StartRound()
	case "hit":
		return r.client.Hit()
	case "settle", "stand":
		return r.client.Settle()
	case "say":
		if rest == "" {
			return errors.New("usage: say <text>")
		}
		return r.client.SendData(nil, rest)
	case "tell":
		target, text, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(text) == "" {
			return errors.New("usage: tell <name> <text>")
		}
		key, err := r.resolve(target)
		if err != nil {
			return err
		}
		return r.client.SendData(&key, strings.TrimSpace(text))
	case "who":
		r.mu.Lock()
		roster := append([]protocol.ConnKey(nil), r.roster...)
		r.mu.Unlock()
		r.printf("%s\n", r.renderer.Roster(roster))
		return nil
	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
}
