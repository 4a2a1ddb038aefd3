// Package feed mirrors a tutoring session to WebSocket clients. Each client
// receives a snapshot on connect followed by every store change.
package feed

import (
	"encoding/json"
	"io"
	"sync"

	clog "github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/codetrek/codetrek/internal/session"
)

const sendBuffer = 64

type client struct {
	conn *websocket.Conn
	send chan []byte

	// Changes published while the client's snapshot is being taken are
	// held in pending until the snapshot is queued.
	ready   bool
	pending []Envelope
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcaster fans store changes out to connected clients.
type Broadcaster struct {
	store  *session.Store
	logger *clog.Logger
	stop   func()

	mu      sync.Mutex
	clients map[*client]bool
	seq     uint64
}

// NewBroadcaster starts observing store. logger may be nil.
func NewBroadcaster(store *session.Store, logger *clog.Logger) *Broadcaster {
	if logger == nil {
		logger = clog.New(io.Discard)
	}
	b := &Broadcaster{
		store:   store,
		logger:  logger,
		clients: make(map[*client]bool),
	}
	b.stop = store.Observe(b.onChange)
	return b
}

// addClient registers conn and queues a snapshot for it, followed by any
// change published while the snapshot was taken and not already part of it.
func (b *Broadcaster) addClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	seq := b.seq
	b.mu.Unlock()

	// The store may publish (and so call onChange) while holding its own
	// locks, so the snapshot is taken without b.mu held.
	snap := b.store.Snapshot()

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.clients[c] {
		return c
	}
	c.ready = true
	b.queue(c, Envelope{Type: MsgSnapshot, Seq: seq, Payload: SnapshotPayload{Session: snap}})
	for _, env := range c.pending {
		if coveredBy(env, snap) {
			continue
		}
		if !b.queue(c, env) {
			break
		}
	}
	c.pending = nil
	return c
}

// coveredBy reports whether env is already reflected in snap.
func coveredBy(env Envelope, snap session.Snapshot) bool {
	p, ok := env.Payload.(ChangePayload)
	if !ok {
		return false
	}
	if p.Epoch != snap.Epoch {
		return p.Epoch < snap.Epoch
	}
	switch env.Type {
	case MsgReset:
		return true
	case MsgAppend:
		return p.Length <= len(snap.Transcript)
	}
	// Level and question frames are idempotent.
	return false
}

// queue marshals env onto c's send buffer, dropping c when it is full.
// It must be called with b.mu held.
func (b *Broadcaster) queue(c *client, env Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("feed marshal failed", "type", env.Type, "err", err)
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		b.logger.Warn("feed client too slow, disconnecting", "remote", c.conn.RemoteAddr())
		b.removeLocked(c)
		return false
	}
}

// removeClient unregisters c and closes its connection.
func (b *Broadcaster) removeClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(c)
}

func (b *Broadcaster) removeLocked(c *client) {
	if b.clients[c] {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Broadcaster) onChange(ch session.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	env := Envelope{
		Type: messageType(ch.Kind),
		Seq:  b.seq,
		Payload: ChangePayload{
			Message:  ch.Message,
			Question: ch.Question,
			Level:    ch.Level,
			Topic:    ch.Topic,
			Length:   ch.Length,
			Epoch:    ch.Epoch,
		},
	}
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("feed marshal failed", "type", env.Type, "err", err)
		return
	}
	for c := range b.clients {
		if !c.ready {
			c.pending = append(c.pending, env)
			continue
		}
		select {
		case c.send <- data:
		default:
			b.logger.Warn("feed client too slow, disconnecting", "remote", c.conn.RemoteAddr())
			b.removeLocked(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close stops observing the store and disconnects every client.
func (b *Broadcaster) Close() {
	b.stop()
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		b.removeLocked(c)
	}
}
