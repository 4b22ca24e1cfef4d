// Package hub owns the registry of live connections. A single goroutine
// holds the map from connection key to sender and applies commands one at a
// time, so nothing else ever touches the map and no lock guards it.
package hub

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/protocol"
)

// DefaultQueueSize is the command queue capacity used when none is given
const DefaultQueueSize = 256

// ErrClosed is returned for commands submitted after Close
var ErrClosed = errors.New("hub closed")

// Key identifies a connection
type Key = protocol.ConnKey

// Sender delivers envelopes to one connection. Send must not block for
// long; the hub calls it from its only goroutine.
type Sender interface {
	Send(env *protocol.Envelope) error
	Close() error
}

// Status is the outcome of an Add
type Status int

const (
	StatusAdded Status = iota
	StatusConflict
)

func (s Status) String() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// AddResult reports how an Add was applied. On conflict the new sender
// replaced Superseded, which the caller should close.
type AddResult struct {
	Status     Status
	ID         string
	Superseded Sender
}

// Hub is the connection registry actor
type Hub struct {
	cmds   chan command
	logger *log.Logger
	now    func() time.Time

	// mu orders enqueues against Close so nothing is sent on a closed channel
	mu     sync.RWMutex
	closed bool

	done chan struct{}

	// conns is owned by the Run goroutine
	conns map[Key]Sender
}

// Option configures a Hub
type Option func(*Hub)

// WithClock sets the time source used to stamp roster envelopes
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// New creates a hub whose command queue holds queueSize commands. Callers
// block while the queue is full.
func New(logger *log.Logger, queueSize int, opts ...Option) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	h := &Hub{
		cmds:   make(chan command, queueSize),
		logger: logger.WithPrefix("hub"),
		now:    time.Now,
		done:   make(chan struct{}),
		conns:  make(map[Key]Sender),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run applies commands until Close is called and the queue is drained
func (h *Hub) Run() {
	defer close(h.done)
	h.logger.Debug("Hub running")

	for cmd := range h.cmds {
		cmd.apply(h)
	}

	h.logger.Debug("Hub stopped", "connections", len(h.conns))
}

// Close stops accepting commands. Commands already queued are still
// applied before Run returns.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.cmds)
}

// Done is closed once Run has returned
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// enqueue puts cmd on the queue, waiting for space or ctx
func (h *Hub) enqueue(ctx context.Context, cmd command) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	select {
	case h.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call enqueues cmd and waits for its reply
func call[T any](ctx context.Context, h *Hub, cmd command, reply chan T) (T, error) {
	var zero T
	if err := h.enqueue(ctx, cmd); err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Add registers sender under key. An existing sender under the same key is
// replaced and the conflict reported.
func (h *Hub) Add(ctx context.Context, key Key, sender Sender) (AddResult, error) {
	reply := make(chan AddResult, 1)
	return call(ctx, h, addCmd{key: key, sender: sender, reply: reply}, reply)
}

// Remove unregisters key and returns its sender so the caller can close it
func (h *Hub) Remove(ctx context.Context, key Key) (Sender, bool, error) {
	reply := make(chan removeResult, 1)
	res, err := call(ctx, h, removeCmd{key: key, reply: reply}, reply)
	return res.sender, res.ok, err
}

// RemoveSender unregisters key only while sender is the one registered
// under it. A connection that was replaced by a later Add uses this so its
// own teardown leaves the replacement in place.
func (h *Hub) RemoveSender(ctx context.Context, key Key, sender Sender) (bool, error) {
	reply := make(chan removeResult, 1)
	res, err := call(ctx, h, removeCmd{key: key, only: sender, reply: reply}, reply)
	return res.ok, err
}

// SendOne delivers env to key. It reports false without error when the key
// is not registered. A failed delivery is logged and leaves the entry in
// place; the transport's own close path removes it.
func (h *Hub) SendOne(ctx context.Context, key Key, env *protocol.Envelope) (bool, error) {
	reply := make(chan bool, 1)
	return call(ctx, h, sendCmd{key: key, env: env, reply: reply}, reply)
}

// Broadcast delivers env to every registered connection except those in
// skip, returning the number of successful deliveries.
func (h *Hub) Broadcast(ctx context.Context, env *protocol.Envelope, skip ...Key) (int, error) {
	reply := make(chan int, 1)
	return call(ctx, h, broadcastCmd{env: env, skip: skip, reply: reply}, reply)
}

// BroadcastRoster sends the current set of keys to every connection. All
// recipients get the same snapshot, taken when the command runs.
func (h *Hub) BroadcastRoster(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	return call(ctx, h, rosterCmd{reply: reply}, reply)
}

// Roster returns the sorted keys currently registered
func (h *Hub) Roster(ctx context.Context) ([]Key, error) {
	reply := make(chan []Key, 1)
	return call(ctx, h, snapshotCmd{reply: reply}, reply)
}

// CloseAll unregisters and closes every connection, returning how many
// were closed
func (h *Hub) CloseAll(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	return call(ctx, h, closeAllCmd{reply: reply}, reply)
}

// sortedKeys returns the registered keys ordered by name, then ID
func (h *Hub) sortedKeys() []Key {
	keys := make([]Key, 0, len(h.conns))
	for k := range h.conns {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return keys
}

// deliver sends env to key's sender and logs failures
func (h *Hub) deliver(key Key, sender Sender, env *protocol.Envelope) bool {
	if err := sender.Send(env); err != nil {
		h.logger.Warn("Failed to send message", "key", key, "type", env.Type, "error", err)
		return false
	}
	return true
}
