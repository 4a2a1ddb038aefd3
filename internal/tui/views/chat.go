package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codetrek/codetrek/internal/transcript"
	"github.com/codetrek/codetrek/internal/tui"
)

// SendChatMsg is sent when the user submits a chat message.
type SendChatMsg struct {
	Content string
}

const inputHeight = 3

// ChatModel shows the transcript above a message input.
type ChatModel struct {
	viewport viewport.Model
	input    textarea.Model
	renderer *tui.Renderer
	style    string
	messages []transcript.Message
	width    int
	height   int
}

// NewChatModel creates a chat panel. style is the glamour style used for
// bot messages.
func NewChatModel(style string, width, height int) ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.CharLimit = 5000
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)

	// Enter submits; newlines need an explicit chord.
	ta.KeyMap.InsertNewline = key.NewBinding(
		key.WithKeys("shift+enter", "ctrl+j"),
		key.WithHelp("ctrl+j", "new line"),
	)

	m := ChatModel{
		viewport: viewport.New(20, 5),
		input:    ta,
		style:    style,
	}
	m.SetSize(width, height)
	return m
}

// SetSize resizes the panel, borders included, and re-wraps the transcript.
func (m *ChatModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	inner := max(width-4, 20)
	m.viewport.Width = inner
	// border (2) + title (1) + gap (1) + input
	m.viewport.Height = max(height-4-inputHeight, 3)
	m.input.SetWidth(inner)
	if m.renderer == nil || m.renderer.Width() != inner {
		m.renderer = tui.NewRenderer(m.style, inner)
	}
	m.refresh()
}

// SetTranscript replaces the displayed messages and scrolls to the end.
func (m *ChatModel) SetTranscript(msgs []transcript.Message) {
	m.messages = msgs
	m.refresh()
}

func (m *ChatModel) refresh() {
	m.viewport.SetContent(m.renderer.Transcript(m.messages))
	m.viewport.GotoBottom()
}

// Focus gives the input key focus.
func (m *ChatModel) Focus() tea.Cmd { return m.input.Focus() }

// Blur removes key focus from the input.
func (m *ChatModel) Blur() { m.input.Blur() }

// Update handles messages for the chat panel.
func (m ChatModel) Update(msg tea.Msg) (ChatModel, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case tui.KeyEnter:
			content := strings.TrimSpace(m.input.Value())
			if content == "" {
				return m, nil
			}
			m.input.Reset()
			return m, func() tea.Msg { return SendChatMsg{Content: content} }
		case "pgup", "pgdown":
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the chat panel. status is shown above the input while an
// operation is in flight.
func (m ChatModel) View(status string) string {
	var b strings.Builder
	b.WriteString(tui.TitleStyle.Render("Chat"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if status != "" {
		b.WriteString(status)
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())

	box := tui.BoxStyle
	if m.input.Focused() {
		box = tui.FocusedBoxStyle
	}
	return box.Width(max(m.width-2, 10)).Render(b.String())
}
