// Package client is a websocket client for the blackjack server. It keeps
// the connection's own identity and current table so callers can issue
// table commands without tracking replies themselves.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/blackjack/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
	bufferSize = 256
)

var (
	ErrNotConnected   = errors.New("not connected")
	ErrSendBufferFull = errors.New("send buffer full")
)

// EventHandler handles one incoming message. Handlers run on the client's
// event goroutine in arrival order and must not block.
type EventHandler func(*protocol.Envelope)

// Client is a connection to the blackjack server
type Client struct {
	serverURL string
	name      string
	conn      *websocket.Conn
	send      chan *protocol.Envelope
	receive   chan *protocol.Envelope
	logger    *log.Logger
	clock     quartz.Clock
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu            sync.RWMutex
	connected     bool
	identity      protocol.ConnKey
	tableID       string
	eventHandlers map[protocol.MessageType][]EventHandler
	waiters       []*waiter
}

type waiter struct {
	msgType protocol.MessageType
	ch      chan *protocol.Envelope
}

// Option configures a Client
type Option func(*Client)

// WithClock sets the clock used for message timestamps and pings
func WithClock(clock quartz.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// NewClient creates a client that will connect to serverURL as name
func NewClient(serverURL, name string, logger *log.Logger, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		serverURL:     serverURL,
		name:          name,
		send:          make(chan *protocol.Envelope, bufferSize),
		receive:       make(chan *protocol.Envelope, bufferSize),
		logger:        logger.WithPrefix("client"),
		clock:         quartz.NewReal(),
		ctx:           ctx,
		cancel:        cancel,
		eventHandlers: make(map[protocol.MessageType][]EventHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// endpoint converts the server URL to the websocket endpoint
func endpoint(serverURL, name string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	u.Path = "/ws"
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the server and waits for it to confirm our identity
func (c *Client) Connect(ctx context.Context) error {
	target, err := endpoint(c.serverURL, c.name)
	if err != nil {
		return err
	}
	c.logger.Info("Connecting to server", "url", target)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	_ = resp.Body.Close()

	// Register before the pumps start so the identity cannot be missed
	self := c.waitFor(protocol.TypeSelfIdentity)

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.wg.Add(3)
	go c.readPump()
	go c.writePump()
	go c.eventProcessor()

	select {
	case <-self.ch:
		c.logger.Info("Connected to server", "id", c.Identity().ID)
		return nil
	case <-ctx.Done():
		c.dropWaiter(self)
		_ = c.Disconnect()
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrNotConnected
	}
}

// Disconnect closes the connection and waits for its goroutines to exit
func (c *Client) Disconnect() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		conn := c.conn
		c.connected = false
		c.mu.Unlock()

		if conn != nil {
			_ = conn.Close()
		}
		c.wg.Wait()
		c.logger.Info("Disconnected from server")
	})
	return nil
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// IsConnected reports whether the connection is up
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Identity returns the key the server assigned to this connection
func (c *Client) Identity() protocol.ConnKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// TableID returns the table this client last saw itself seated at
func (c *Client) TableID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tableID
}

// Send queues a message for the server
func (c *Client) Send(msgType protocol.MessageType, data any) error {
	env, err := protocol.NewEnvelope(msgType, data, c.clock.Now())
	if err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	select {
	case c.send <- env:
		return nil
	case <-c.ctx.Done():
		return ErrNotConnected
	default:
		return ErrSendBufferFull
	}
}

// CreateTable asks the server for a new table
func (c *Client) CreateTable() error {
	return c.Send(protocol.TypeCreateTable, nil)
}

// RemoveTable deletes an empty table
func (c *Client) RemoveTable(tableID string) error {
	return c.Send(protocol.TypeRemoveTable, protocol.RemoveTable{TableID: tableID})
}

// JoinTable takes a seat at tableID
func (c *Client) JoinTable(tableID string) error {
	return c.Send(protocol.TypeJoinTable, protocol.JoinTable{TableID: tableID})
}

// LeaveTable gives up the current seat. The server sends no state to a
// player who has left, so the table is forgotten here.
func (c *Client) LeaveTable() error {
	if err := c.Send(protocol.TypeLeaveTable, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.tableID = ""
	c.mu.Unlock()
	return nil
}

// StartRound deals a new round at the current table
func (c *Client) StartRound() error {
	return c.Send(protocol.TypeStartRound, nil)
}

// Hit asks for another card
func (c *Client) Hit() error {
	return c.Send(protocol.TypeHit, nil)
}

// Settle finishes the round
func (c *Client) Settle() error {
	return c.Send(protocol.TypeSettle, nil)
}

// SendData sends payload to to, or to every other connection when to is nil
func (c *Client) SendData(to *protocol.ConnKey, payload string) error {
	return c.Send(protocol.TypeData, protocol.Data{To: to, Payload: payload})
}

// AddEventHandler adds a handler for messages of msgType
func (c *Client) AddEventHandler(msgType protocol.MessageType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHandlers[msgType] = append(c.eventHandlers[msgType], handler)
}

func (c *Client) waitFor(msgType protocol.MessageType) *waiter {
	w := &waiter{msgType: msgType, ch: make(chan *protocol.Envelope, 1)}
	c.mu.Lock()
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()
	return w
}

func (c *Client) dropWaiter(w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, other := range c.waiters {
		if other == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// Request sends a message and waits for the next message of replyType.
// An error message from the server ends the wait early.
func (c *Client) Request(ctx context.Context, msgType protocol.MessageType, data any, replyType protocol.MessageType) (*protocol.Envelope, error) {
	reply := c.waitFor(replyType)
	defer c.dropWaiter(reply)
	failure := c.waitFor(protocol.TypeError)
	defer c.dropWaiter(failure)

	if err := c.Send(msgType, data); err != nil {
		return nil, err
	}

	select {
	case env := <-reply.ch:
		return env, nil
	case env := <-failure.ch:
		var e protocol.Error
		if err := env.Decode(&e); err != nil {
			return nil, err
		}
		return nil, &ServerError{Code: e.Code, Message: e.Message}
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %s: %w", replyType, ctx.Err())
	case <-c.ctx.Done():
		return nil, ErrNotConnected
	}
}

// ServerError is an error message returned by the server
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (c *Client) readPump() {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.cancel()
	}()

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.logger.Debug("Received message", "type", env.Type)

		select {
		case c.receive <- &env:
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump owns all writes to the socket. Deadlines use the wall clock
// because the socket compares them against it.
func (c *Client) writePump() {
	defer c.wg.Done()
	ticker := c.clock.NewTicker(pingPeriod, "client", "ping")
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				c.cancel()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) eventProcessor() {
	defer c.wg.Done()
	for {
		select {
		case env := <-c.receive:
			c.handleMessage(env)
		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage updates local state, wakes any waiter and then calls the
// registered handlers
func (c *Client) handleMessage(env *protocol.Envelope) {
	c.track(env)

	c.mu.Lock()
	handlers := c.eventHandlers[env.Type]
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if w.msgType == env.Type {
			w.ch <- env
			continue
		}
		remaining = append(remaining, w)
	}
	c.waiters = remaining
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.logger.Debug("No handler for message type", "type", env.Type)
	}
	for _, handler := range handlers {
		handler(env)
	}
}

func (c *Client) track(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeSelfIdentity:
		var self protocol.SelfIdentity
		if err := env.Decode(&self); err != nil {
			c.logger.Warn("Bad identity message", "error", err)
			return
		}
		key := protocol.ConnKey{Name: self.Name}
		if err := key.ID.UnmarshalText([]byte(self.ID)); err != nil {
			c.logger.Warn("Bad identity id", "id", self.ID, "error", err)
			return
		}
		c.mu.Lock()
		c.identity = key
		c.mu.Unlock()

	case protocol.TypeTableState:
		var state protocol.TableState
		if err := env.Decode(&state); err != nil {
			return
		}
		me := c.Identity().ID.String()
		seated := false
		for _, p := range state.Players {
			if p.ID == me {
				seated = true
				break
			}
		}
		c.mu.Lock()
		switch {
		case seated:
			c.tableID = state.TableID
		case c.tableID == state.TableID:
			c.tableID = ""
		}
		c.mu.Unlock()
	}
}
