// Package bridge relays replies produced by the code surface (guidance,
// evaluations) into the conversation surface.
//
// Every delivered reply is appended to the transcript as a bot message. In
// addition, at most one subscriber is notified. Registering a new subscriber
// replaces the previous one, which is never invoked again.
package bridge

import (
	"sync"

	"github.com/codetrek/codetrek/internal/transcript"
)

// Appender is the part of the session store the bridge writes to.
type Appender interface {
	AppendMessage(msg transcript.Message) int
}

// Handler receives the text of each delivered reply.
type Handler func(text string)

// Bridge is a single-slot callback registry.
//
// Handlers run with a read hold on dispatch, and Register and Cancel take
// the write side, so once either returns the previous handler is not
// running and will not be called again. Handlers must not call back into
// the Bridge.
type Bridge struct {
	out Appender

	dispatch sync.RWMutex
	mu       sync.Mutex
	handler  Handler
	active   uint64 // id of the current subscription, 0 when none
	nextID   uint64
}

// New returns a Bridge that appends delivered replies to out.
func New(out Appender) *Bridge {
	return &Bridge{out: out}
}

// Subscription is a handle to a registered handler.
type Subscription struct {
	id uint64
	b  *Bridge
}

// ID identifies the subscription. IDs are never reused.
func (s Subscription) ID() uint64 { return s.id }

// Cancel removes the handler if it is still the active one. Cancelling a
// replaced or already cancelled subscription does nothing.
func (s Subscription) Cancel() {
	if s.b == nil {
		return
	}
	s.b.dispatch.Lock()
	defer s.b.dispatch.Unlock()
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.active == s.id {
		s.b.handler = nil
		s.b.active = 0
	}
}

// Active reports whether the subscription is still the registered one.
func (s Subscription) Active() bool {
	if s.b == nil {
		return false
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	return s.b.active == s.id
}

// Register makes h the sole subscriber. Any previous handler is dropped
// without being invoked.
func (b *Bridge) Register(h Handler) Subscription {
	b.dispatch.Lock()
	defer b.dispatch.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handler = h
	b.active = b.nextID
	return Subscription{id: b.nextID, b: b}
}

// Listen registers a channel consumer with the given buffer size. When the
// channel is full the notification is dropped; the transcript entry is
// still appended. The channel is never closed.
func (b *Bridge) Listen(buffer int) (<-chan string, Subscription) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan string, buffer)
	sub := b.Register(func(text string) {
		select {
		case ch <- text:
		default:
		}
	})
	return ch, sub
}

// Deliver appends text to the transcript as a bot message and then passes
// it to the current handler, if any.
func (b *Bridge) Deliver(text string) {
	b.out.AppendMessage(transcript.Bot(text))

	b.dispatch.RLock()
	defer b.dispatch.RUnlock()
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h != nil {
		h(text)
	}
}
