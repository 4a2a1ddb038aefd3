package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/codetrek/codetrek/internal/transcript"
)

// FormatOutput renders an execution result as plain text: captured console
// lines, then the value (JSON-indented when structured), then a failure
// marker.
func FormatOutput(res transcript.ExecutionResult) string {
	var b strings.Builder
	for _, line := range res.Logs {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(formatValue(res.Output))
	if !res.Success {
		b.WriteString("\nExecution failed")
	}
	return b.String()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "undefined"
	case string:
		return v
	case bool, float64, float32, int, int64, uint64:
		return fmt.Sprint(v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// Renderer turns transcript entries into terminal text. Bot messages are
// rendered as markdown.
type Renderer struct {
	md    *glamour.TermRenderer
	width int
}

// NewRenderer creates a Renderer wrapping at width. style is a glamour
// standard style name ("dark", "light", "notty").
func NewRenderer(style string, width int) *Renderer {
	if width < 20 {
		width = 20
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		md = nil
	}
	return &Renderer{md: md, width: width}
}

// Width returns the wrap width.
func (r *Renderer) Width() int { return r.width }

// Markdown renders text, falling back to the raw text if rendering fails.
func (r *Renderer) Markdown(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// Transcript renders every message in order.
func (r *Renderer) Transcript(msgs []transcript.Message) string {
	if len(msgs) == 0 {
		return DimStyle.Render("Select a topic to start chatting")
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, r.Message(m))
	}
	return strings.Join(parts, "\n\n")
}

// Message renders a single transcript entry.
func (r *Renderer) Message(m transcript.Message) string {
	switch m.Kind {
	case transcript.KindUser:
		return UserStyle.Render("You: ") + m.Text
	case transcript.KindCodeOutput:
		if m.Result == nil {
			return ""
		}
		body := FormatOutput(*m.Result)
		if !m.Result.Success {
			body = strings.TrimSuffix(body, "Execution failed") + ErrorStyle.Render("Execution failed")
		}
		return DimStyle.Render("Code Output:") + "\n" + CodeOutputStyle.Render(body)
	default:
		return BotStyle.Render("Tutor:") + "\n" + r.Markdown(m.Text)
	}
}
