package tutor

import "sync"

// Health tracks consecutive transport failures against the backend.
// It only reports; requests are never short-circuited.
type Health struct {
	mu                  sync.Mutex
	consecutiveFailures int
	threshold           int
	unreachable         bool
}

// NewHealth creates a tracker that reports the backend unreachable after
// threshold consecutive transport failures.
func NewHealth(threshold int) *Health {
	if threshold <= 0 {
		threshold = 3 // default
	}
	return &Health{threshold: threshold}
}

// RecordFailure increments the failure counter.
func (h *Health) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures++
	if h.consecutiveFailures >= h.threshold {
		h.unreachable = true
	}
}

// RecordSuccess resets the failure counter.
func (h *Health) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures = 0
	h.unreachable = false
}

// Unreachable reports whether the threshold has been reached.
func (h *Health) Unreachable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unreachable
}

// ConsecutiveFailures returns the current failure count.
func (h *Health) ConsecutiveFailures() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consecutiveFailures
}
