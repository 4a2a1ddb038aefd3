// Package transcript holds the ordered conversation log of a tutoring session.
package transcript

import (
	"time"
)

// Kind identifies who produced a transcript entry.
type Kind string

const (
	KindUser       Kind = "user"
	KindBot        Kind = "bot"
	KindCodeOutput Kind = "code-output"
)

// ExecutionResult is the outcome of running a code snippet.
// Output holds the snippet's return value on success and the
// human-readable failure message otherwise.
type ExecutionResult struct {
	Code    string        `json:"code"`
	Output  any           `json:"output"`
	Success bool          `json:"success"`
	Logs    []string      `json:"logs,omitempty"`
	Engine  string        `json:"engine,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns,omitempty"`
}

// Message is a single transcript entry. Text is set for user and bot
// messages, Result for code-output messages.
type Message struct {
	Kind   Kind             `json:"kind"`
	Text   string           `json:"text,omitempty"`
	Result *ExecutionResult `json:"result,omitempty"`
	Seq    int              `json:"seq"`
	At     time.Time        `json:"at"`
}

// User builds a user message.
func User(text string) Message {
	return Message{Kind: KindUser, Text: text}
}

// Bot builds a bot message.
func Bot(text string) Message {
	return Message{Kind: KindBot, Text: text}
}

// CodeOutput builds a code-output message carrying a copy of res.
func CodeOutput(res ExecutionResult) Message {
	r := res
	r.Logs = append([]string(nil), res.Logs...)
	return Message{Kind: KindCodeOutput, Result: &r}
}

// Content returns the message payload: the text for user and bot
// messages, the ExecutionResult for code-output messages.
func (m Message) Content() any {
	if m.Kind == KindCodeOutput && m.Result != nil {
		return *m.Result
	}
	return m.Text
}

// clone returns a deep copy so callers never share the stored result.
func (m Message) clone() Message {
	if m.Result != nil {
		r := *m.Result
		r.Logs = append([]string(nil), m.Result.Logs...)
		m.Result = &r
	}
	return m
}
