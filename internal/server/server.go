package server

import (
	"context"
	"encoding/json"
	"errors"
	rand "math/rand/v2"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/hub"
	"github.com/lox/blackjack/internal/ident"
	"github.com/lox/blackjack/internal/protocol"
	"github.com/lox/blackjack/internal/randutil"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Server accepts websocket clients, registers them with the hub and hands
// their requests to the game service.
type Server struct {
	cfg      *Config
	upgrader websocket.Upgrader
	hub      *hub.Hub
	games    *GameService
	logger   *log.Logger
	clock    quartz.Clock
	ids      *ident.Generator
}

type serverOptions struct {
	clock quartz.Clock
	ids   *ident.Generator
	rng   *rand.Rand
}

// Option configures a Server
type Option func(*serverOptions)

// WithClock sets the clock used for envelope timestamps and pings
func WithClock(clock quartz.Clock) Option {
	return func(o *serverOptions) { o.clock = clock }
}

// WithIDGenerator sets the source of connection and table IDs
func WithIDGenerator(ids *ident.Generator) Option {
	return func(o *serverOptions) { o.ids = ids }
}

// WithRNG sets the generator tables shuffle from, overriding table.seed
func WithRNG(rng *rand.Rand) Option {
	return func(o *serverOptions) { o.rng = rng }
}

// NewServer creates a server from a validated config
func NewServer(logger *log.Logger, cfg *Config, opts ...Option) *Server {
	o := serverOptions{clock: quartz.NewReal(), ids: ident.NewGenerator(nil)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		seed := randutil.Seed()
		if cfg.Table.Seed != nil {
			seed = *cfg.Table.Seed
		}
		o.rng = randutil.New(seed)
	}

	now := func() time.Time { return o.clock.Now() }
	h := hub.New(logger, cfg.Hub.QueueSize, hub.WithClock(now))
	games := NewGameService(h, logger, o.rng, cfg.Table, now)
	games.Registry().SetIDFunc(o.ids.TableID)

	s := &Server{
		cfg:    cfg,
		hub:    h,
		games:  games,
		logger: logger.WithPrefix("server"),
		clock:  o.clock,
		ids:    o.ids,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Hub returns the connection registry
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Games returns the game service
func (s *Server) Games() *GameService {
	return s.games
}

// Handler returns the HTTP routes served by the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Run serves on ln until ctx is cancelled, then closes every connection
// and stops the hub.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run()
		return nil
	})

	g.Go(func() error {
		s.logger.Info("Starting WebSocket server", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		if n, cerr := s.hub.CloseAll(shutdownCtx); cerr != nil {
			s.logger.Warn("Failed to close connections", "error", cerr)
		} else {
			s.logger.Debug("Closed connections", "count", n)
		}
		s.hub.Close()
		return err
	})

	return g.Wait()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	// Non-browser clients send no Origin header
	return origin == "" || slices.Contains(allowed, origin)
}

func (s *Server) hubContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.HubTimeout())
}

// handleWebSocket upgrades the request and runs the connection until the
// peer goes away. The connection is the inbound unit: it reads requests,
// registers itself, and unregisters before returning.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, "name query parameter is required", http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	key := hub.Key{Name: name, ID: s.ids.ConnID()}
	conn := NewConnection(ws, key, s.cfg.Hub.SendBuffer, s.logger, s.clock)
	conn.startWriter()
	defer conn.Wait()

	if err := s.register(conn); err != nil {
		s.logger.Warn("Failed to register connection", "key", key, "error", err)
		_ = conn.Close()
		s.unregister(conn)
		return
	}

	conn.readPump(s.handleMessage)
	s.unregister(conn)
}

func (s *Server) register(conn *Connection) error {
	ctx, cancel := s.hubContext()
	defer cancel()

	res, err := s.hub.Add(ctx, conn.Key(), conn)
	if err != nil {
		return err
	}
	if res.Superseded != nil {
		_ = res.Superseded.Close()
	}

	identity, err := protocol.NewEnvelope(protocol.TypeSelfIdentity,
		protocol.SelfIdentity{ID: res.ID, Name: conn.Key().Name}, s.clock.Now())
	if err != nil {
		return err
	}
	if _, err := s.hub.SendOne(ctx, conn.Key(), identity); err != nil {
		return err
	}
	_, err = s.hub.BroadcastRoster(ctx)
	return err
}

func (s *Server) unregister(conn *Connection) {
	ctx, cancel := s.hubContext()
	defer cancel()

	if tableID := conn.Table(); tableID != "" {
		if err := s.games.Leave(ctx, conn.Key(), tableID); err != nil {
			s.logger.Debug("Failed to leave table on disconnect", "table", tableID, "error", err)
		}
		conn.SetTable("")
	}

	// Only remove our own entry; a replacement registered under the same
	// key stays.
	if _, err := s.hub.RemoveSender(ctx, conn.Key(), conn); err != nil {
		// The hub has already stopped during shutdown.
		s.logger.Debug("Failed to remove connection", "key", conn.Key(), "error", err)
		return
	}
	_ = conn.Close()
	if _, err := s.hub.BroadcastRoster(ctx); err != nil {
		s.logger.Debug("Failed to broadcast roster", "error", err)
	}
}

// handleMessage dispatches one client request
func (s *Server) handleMessage(c *Connection, env *protocol.Envelope) {
	ctx, cancel := s.hubContext()
	defer cancel()

	var err error
	switch env.Type {
	case protocol.TypeCreateTable:
		id := s.games.CreateTable()
		s.reply(c, protocol.TypeTableCreated, protocol.TableCreated{TableID: id})

	case protocol.TypeRemoveTable:
		err = s.handleRemove(c, env)

	case protocol.TypeJoinTable:
		err = s.handleJoin(ctx, c, env)

	case protocol.TypeLeaveTable:
		err = s.seated(c, func(tableID string) error {
			if err := s.games.Leave(ctx, c.Key(), tableID); err != nil {
				return err
			}
			c.SetTable("")
			return nil
		})

	case protocol.TypeStartRound:
		err = s.seated(c, func(tableID string) error {
			return s.games.StartRound(ctx, c.Key(), tableID)
		})

	case protocol.TypeHit:
		err = s.seated(c, func(tableID string) error {
			return s.games.Hit(ctx, c.Key(), tableID)
		})

	case protocol.TypeSettle:
		err = s.seated(c, func(tableID string) error {
			return s.games.Settle(ctx, c.Key(), tableID)
		})

	case protocol.TypeData:
		err = s.handleData(ctx, c, env)

	default:
		c.sendError(protocol.CodeUnknownType, "clients may not send "+env.Type.String())
		return
	}

	if err != nil {
		var inputErr *badRequestError
		if errors.As(err, &inputErr) {
			c.sendError(protocol.CodeInvalidMessage, err.Error())
			return
		}
		s.logger.Debug("Request failed", "key", c.Key(), "type", env.Type, "error", err)
		c.sendError(errorCode(err), err.Error())
	}
}

// badRequestError marks a request whose payload could not be used
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func (s *Server) handleJoin(ctx context.Context, c *Connection, env *protocol.Envelope) error {
	var req protocol.JoinTable
	if err := env.Decode(&req); err != nil {
		return &badRequestError{err}
	}
	if req.TableID == "" {
		return &badRequestError{errors.New("table_id is required")}
	}
	if err := ident.Validate(req.TableID); err != nil {
		return &badRequestError{err}
	}

	// A connection sits at one table at a time
	if current := c.Table(); current != "" && current != req.TableID {
		if err := s.games.Leave(ctx, c.Key(), current); err != nil && !errors.Is(err, blackjack.ErrTableNotFound) {
			return err
		}
		c.SetTable("")
	}

	if err := s.games.Join(ctx, c.Key(), req.TableID); err != nil {
		return err
	}
	c.SetTable(req.TableID)
	return nil
}

func (s *Server) handleRemove(c *Connection, env *protocol.Envelope) error {
	var req protocol.RemoveTable
	if err := env.Decode(&req); err != nil {
		return &badRequestError{err}
	}
	if err := ident.Validate(req.TableID); err != nil {
		return &badRequestError{err}
	}
	if err := s.games.RemoveTable(req.TableID); err != nil {
		return err
	}
	s.reply(c, protocol.TypeTableRemoved, protocol.TableRemoved{TableID: req.TableID})
	return nil
}

func (s *Server) seated(c *Connection, fn func(tableID string) error) error {
	tableID := c.Table()
	if tableID == "" {
		return errNotSeated
	}
	return fn(tableID)
}

// handleData relays a payload to one connection, or to everyone else when
// no recipient is named
func (s *Server) handleData(ctx context.Context, c *Connection, env *protocol.Envelope) error {
	var msg protocol.Data
	if err := env.Decode(&msg); err != nil {
		return &badRequestError{err}
	}
	from := c.Key()
	out := protocol.Data{From: &from, Payload: msg.Payload}

	relay, err := protocol.NewEnvelope(protocol.TypeData, out, s.clock.Now())
	if err != nil {
		return err
	}

	if msg.To != nil {
		delivered, err := s.hub.SendOne(ctx, *msg.To, relay)
		if err != nil {
			return err
		}
		if !delivered {
			return &recipientError{key: *msg.To}
		}
		return nil
	}

	_, err = s.hub.Broadcast(ctx, relay, from)
	return err
}

// recipientError reports a data message addressed to an unknown key
type recipientError struct {
	key hub.Key
}

func (e *recipientError) Error() string { return "no connection " + e.key.String() }
func (e *recipientError) Is(target error) bool {
	return target == blackjack.ErrPlayerNotFound
}

func (s *Server) reply(c *Connection, msgType protocol.MessageType, data any) {
	env, err := protocol.NewEnvelope(msgType, data, s.clock.Now())
	if err != nil {
		s.logger.Error("Failed to create message", "type", msgType, "error", err)
		return
	}
	if err := c.Send(env); err != nil {
		s.logger.Debug("Failed to reply", "key", c.Key(), "error", err)
	}
}

type health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Tables      int    `json:"tables"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HubTimeout())
	defer cancel()

	resp := health{Status: "ok", Tables: s.games.Registry().Len()}
	code := http.StatusOK
	roster, err := s.hub.Roster(ctx)
	if err != nil {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	resp.Connections = len(roster)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
