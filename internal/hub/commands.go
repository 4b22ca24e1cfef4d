package hub

import (
	"slices"

	"github.com/lox/blackjack/internal/protocol"
)

// command is one unit of work applied by the Run goroutine
type command interface {
	apply(h *Hub)
}

type addCmd struct {
	key    Key
	sender Sender
	reply  chan<- AddResult
}

func (c addCmd) apply(h *Hub) {
	old, exists := h.conns[c.key]
	h.conns[c.key] = c.sender

	res := AddResult{Status: StatusAdded, ID: c.key.ID.String()}
	if exists {
		res.Status = StatusConflict
		res.Superseded = old
		h.logger.Warn("Replaced connection with conflicting key", "key", c.key)
	} else {
		h.logger.Info("Connection added", "key", c.key, "total", len(h.conns))
	}
	c.reply <- res
}

type removeResult struct {
	sender Sender
	ok     bool
}

type removeCmd struct {
	key   Key
	only  Sender
	reply chan<- removeResult
}

func (c removeCmd) apply(h *Hub) {
	sender, ok := h.conns[c.key]
	if ok && c.only != nil && sender != c.only {
		h.logger.Debug("Kept replacement connection", "key", c.key)
		c.reply <- removeResult{}
		return
	}
	if ok {
		delete(h.conns, c.key)
		h.logger.Info("Connection removed", "key", c.key, "total", len(h.conns))
	}
	c.reply <- removeResult{sender: sender, ok: ok}
}

type sendCmd struct {
	key   Key
	env   *protocol.Envelope
	reply chan<- bool
}

func (c sendCmd) apply(h *Hub) {
	sender, ok := h.conns[c.key]
	if !ok {
		h.logger.Debug("Dropping message for unknown connection", "key", c.key, "type", c.env.Type)
		c.reply <- false
		return
	}
	c.reply <- h.deliver(c.key, sender, c.env)
}

type broadcastCmd struct {
	env   *protocol.Envelope
	skip  []Key
	reply chan<- int
}

func (c broadcastCmd) apply(h *Hub) {
	delivered := 0
	for _, key := range h.sortedKeys() {
		if slices.Contains(c.skip, key) {
			continue
		}
		if h.deliver(key, h.conns[key], c.env) {
			delivered++
		}
	}
	c.reply <- delivered
}

type rosterCmd struct {
	reply chan<- int
}

func (c rosterCmd) apply(h *Hub) {
	keys := h.sortedKeys()
	env, err := protocol.NewEnvelope(protocol.TypeUpdateRoster, protocol.UpdateRoster{Keys: keys}, h.now())
	if err != nil {
		h.logger.Error("Failed to build roster", "error", err)
		c.reply <- 0
		return
	}

	delivered := 0
	for _, key := range keys {
		if h.deliver(key, h.conns[key], env) {
			delivered++
		}
	}
	h.logger.Debug("Broadcast roster", "connections", len(keys), "delivered", delivered)
	c.reply <- delivered
}

type snapshotCmd struct {
	reply chan<- []Key
}

func (c snapshotCmd) apply(h *Hub) {
	c.reply <- h.sortedKeys()
}

type closeAllCmd struct {
	reply chan<- int
}

func (c closeAllCmd) apply(h *Hub) {
	n := len(h.conns)
	for key, sender := range h.conns {
		if err := sender.Close(); err != nil {
			h.logger.Warn("Failed to close connection", "key", key, "error", err)
		}
		delete(h.conns, key)
	}
	h.logger.Info("Closed all connections", "count", n)
	c.reply <- n
}
