// Package views provides the TUI view components.
package views

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codetrek/codetrek/internal/tui"
)

type topicItem string

func (t topicItem) Title() string       { return string(t) }
func (t topicItem) Description() string { return "" }
func (t topicItem) FilterValue() string { return string(t) }

// PickerModel is the topic chooser. Typing "/" filters topics with fuzzy
// matching.
type PickerModel struct {
	list      list.Model
	canCancel bool
}

// NewPickerModel creates a picker listing topics.
func NewPickerModel(topics []string, width, height int) PickerModel {
	items := make([]list.Item, len(topics))
	for i, t := range topics {
		items[i] = topicItem(t)
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	l := list.New(items, delegate, width, height)
	l.Title = "Choose a topic"
	l.Styles.Title = tui.TitleStyle
	l.SetShowStatusBar(false)
	l.DisableQuitKeybindings()

	return PickerModel{list: l}
}

// SetCancellable controls whether Esc returns to the session.
func (m *PickerModel) SetCancellable(ok bool) { m.canCancel = ok }

// SetSize resizes the list.
func (m *PickerModel) SetSize(width, height int) { m.list.SetSize(width, height) }

// Select moves the cursor to topic if present.
func (m *PickerModel) Select(topic string) {
	for i, it := range m.list.Items() {
		if string(it.(topicItem)) == topic {
			m.list.Select(i)
			return
		}
	}
}

// Update handles messages for the picker.
func (m PickerModel) Update(msg tea.Msg) (PickerModel, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch km.String() {
		case tui.KeyEnter:
			item, ok := m.list.SelectedItem().(topicItem)
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return tui.TopicChosenMsg{Topic: string(item)} }
		case tui.KeyEsc:
			if m.list.FilterState() == list.FilterApplied {
				break
			}
			if m.canCancel {
				return m, func() tea.Msg { return tui.PickerCancelledMsg{} }
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the picker.
func (m PickerModel) View() string {
	return m.list.View()
}
