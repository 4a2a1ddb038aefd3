package transcript

import (
	"sync"
	"time"
)

// Transcript is an append-only, ordered log of messages. There is no
// operation that reorders, removes or edits an entry once appended.
// All methods are safe for concurrent use.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{now: time.Now}
}

// Append adds msg to the end of the log and returns the new length.
// Seq and At are assigned here; values set by the caller are overwritten.
func (t *Transcript) Append(msg Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg = msg.clone()
	msg.Seq = len(t.messages) + 1
	msg.At = t.now().UTC()
	t.messages = append(t.messages, msg)
	return len(t.messages)
}

// All returns a snapshot of every message in insertion order.
// The returned slice is a copy; modifying it does not affect the log.
func (t *Transcript) All() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.clone()
	}
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message, if any.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1].clone(), true
}
