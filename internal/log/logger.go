// Package log provides the session event journal.
// This file appends JSON events to events.jsonl.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event type constants.
const (
	EventTopicSelected       = "topic_selected"
	EventQuestionFetched     = "question_fetched"
	EventQuestionFailed      = "question_failed"
	EventQuestionDiscarded   = "question_discarded"
	EventChatSent            = "chat_sent"
	EventChatFailed          = "chat_failed"
	EventCodeExecuted        = "code_executed"
	EventCodeRejected        = "code_rejected"
	EventGuideDelivered      = "guide_delivered"
	EventGuideFailed         = "guide_failed"
	EventEvaluationDelivered = "evaluation_delivered"
	EventEvaluationFailed    = "evaluation_failed"
)

// LogEvent represents a single structured event written to the journal.
type LogEvent struct {
	Time       time.Time              `json:"time"`
	Event      string                 `json:"event"`
	TaskID     string                 `json:"task,omitempty"`
	Topic      string                 `json:"topic,omitempty"`
	Level      string                 `json:"level,omitempty"`
	Title      string                 `json:"title,omitempty"`
	Engine     string                 `json:"engine,omitempty"`
	Success    *bool                  `json:"success,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Epoch      uint64                 `json:"epoch,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Logger writes append-only JSONL events to a file.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates a Logger that writes to path. The parent directory is
// created if it does not already exist. An existing file is not truncated.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &Logger{path: path}, nil
}

// Path returns the journal file path.
func (l *Logger) Path() string { return l.path }

// Append writes a single LogEvent as one JSON line to the journal.
// If event.Time is the zero value, it is automatically set to time.Now().UTC().
// Thread-safe via mutex.
func (l *Logger) Append(event LogEvent) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}
	return nil
}

// ReadAll reads and parses all events from the journal.
// Returns an empty slice (not an error) if the file does not exist.
func (l *Logger) ReadAll() ([]LogEvent, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []LogEvent{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var events []LogEvent
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event LogEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return events, nil
}

// Bool returns a pointer to b, for LogEvent.Success.
func Bool(b bool) *bool { return &b }
