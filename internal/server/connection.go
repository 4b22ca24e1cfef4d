package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/blackjack/internal/hub"
	"github.com/lox/blackjack/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// Connection is one websocket client. It implements hub.Sender: Send only
// queues, and the write pump owns every write to the socket.
type Connection struct {
	ws        *websocket.Conn
	key       hub.Key
	send      chan *protocol.Envelope
	logger    *log.Logger
	clock     quartz.Clock
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu      sync.RWMutex
	tableID string
}

var _ hub.Sender = (*Connection)(nil)

// NewConnection wraps an upgraded websocket
func NewConnection(ws *websocket.Conn, key hub.Key, sendBuffer int, logger *log.Logger, clock quartz.Clock) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ws:     ws,
		key:    key,
		send:   make(chan *protocol.Envelope, sendBuffer),
		logger: logger.WithPrefix("conn").With("key", key),
		clock:  clock,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Key returns the connection's registry key
func (c *Connection) Key() hub.Key {
	return c.key
}

// Send queues env for the write pump. A full buffer means the peer is not
// keeping up, so the connection is closed rather than blocking the hub.
func (c *Connection) Send(env *protocol.Envelope) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- env:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrSendBufferFull
	}
}

// Close stops the connection. The write pump flushes anything already
// queued, sends a close frame and closes the socket.
func (c *Connection) Close() error {
	c.closeOnce.Do(c.cancel)
	return nil
}

// Done is closed once Close has been called
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Wait blocks until the write pump has exited
func (c *Connection) Wait() {
	c.wg.Wait()
}

// SetTable records the table this connection is seated at
func (c *Connection) SetTable(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableID = tableID
}

// Table returns the table this connection is seated at, if any
func (c *Connection) Table() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tableID
}

// startWriter launches the write pump
func (c *Connection) startWriter() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.writePump()
	}()
}

// readPump delivers inbound envelopes to handle until the socket fails or
// the connection is closed.
func (c *Connection) readPump(handle func(*Connection, *protocol.Envelope)) {
	defer func() { _ = c.Close() }()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		env, err := protocol.Unmarshal(data)
		if err != nil {
			c.logger.Debug("Rejected message", "error", err)
			code := protocol.CodeInvalidMessage
			if errors.Is(err, protocol.ErrUnknownMessageType) {
				code = protocol.CodeUnknownType
			}
			c.sendError(code, err.Error())
			continue
		}

		c.logger.Debug("Received message", "type", env.Type)
		handle(c, env)
	}
}

// sendError queues an error envelope directly. Errors answer the request
// on this connection only, so they skip the hub.
func (c *Connection) sendError(code, message string) {
	env, err := protocol.NewEnvelope(protocol.TypeError, protocol.Error{Code: code, Message: message}, c.clock.Now())
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	_ = c.Send(env)
}

// writePump owns all writes to the socket. Deadlines use the wall clock
// because the socket compares them against it.
func (c *Connection) writePump() {
	ticker := c.clock.NewTicker(pingPeriod, "conn", "ping")
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case env := <-c.send:
			if err := c.write(env); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				_ = c.Close()
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}

		case <-c.ctx.Done():
			c.flush()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Connection) write(env *protocol.Envelope) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(env)
}

// flush writes whatever is still queued without waiting for more
func (c *Connection) flush() {
	for {
		select {
		case env := <-c.send:
			if err := c.write(env); err != nil {
				return
			}
		default:
			return
		}
	}
}
