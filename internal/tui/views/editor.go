package views

import (
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codetrek/codetrek/internal/tui"
)

// EditorModel is the code buffer.
type EditorModel struct {
	area   textarea.Model
	width  int
	height int
}

// NewEditorModel creates an editor holding starter.
func NewEditorModel(starter string, width, height int) EditorModel {
	ta := textarea.New()
	ta.Placeholder = "Write JavaScript here..."
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.SetValue(starter)

	m := EditorModel{area: ta}
	m.SetSize(width, height)
	return m
}

// SetSize resizes the panel, borders included.
func (m *EditorModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.area.SetWidth(max(width-4, 10))
	m.area.SetHeight(max(height-3, 3))
}

// Value returns the code verbatim.
func (m EditorModel) Value() string { return m.area.Value() }

// Focus gives the editor key input.
func (m *EditorModel) Focus() tea.Cmd { return m.area.Focus() }

// Blur removes key input from the editor.
func (m *EditorModel) Blur() { m.area.Blur() }

// Update handles messages for the editor.
func (m EditorModel) Update(msg tea.Msg) (EditorModel, tea.Cmd) {
	var cmd tea.Cmd
	m.area, cmd = m.area.Update(msg)
	return m, cmd
}

// View renders the editor panel.
func (m EditorModel) View() string {
	box := tui.BoxStyle
	if m.area.Focused() {
		box = tui.FocusedBoxStyle
	}
	content := tui.TitleStyle.Render("Code") + "\n" + m.area.View()
	return box.Width(max(m.width-2, 10)).Render(content)
}
