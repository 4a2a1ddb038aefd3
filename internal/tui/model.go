package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/codetrek/codetrek/internal/config"
	"github.com/codetrek/codetrek/internal/tutor"
)

// ViewState represents the current state of the TUI.
type ViewState int

const (
	StatePicker ViewState = iota // choosing a topic
	StateTutor
)

// Focus identifies the panel receiving key input.
type Focus int

const (
	FocusChat Focus = iota
	FocusEditor
)

// Toggle returns the other panel.
func (f Focus) Toggle() Focus {
	if f == FocusChat {
		return FocusEditor
	}
	return FocusChat
}

// Model holds the state shared by every view.
type Model struct {
	State ViewState
	Focus Focus

	Cfg        *config.Config
	Controller *tutor.Controller

	// Pending counts operations in flight; the spinner runs while it is
	// non-zero.
	Pending int
	Spinner spinner.Model

	Notice    *tutor.Notice
	NoticeSeq int

	Width  int
	Height int

	// Ctrl+C confirmation state
	CtrlCPending bool
}

// NewModel creates a Model starting at the topic picker.
func NewModel(cfg *config.Config, ctrl *tutor.Controller) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(primaryColor))

	return &Model{
		State:      StatePicker,
		Focus:      FocusChat,
		Cfg:        cfg,
		Controller: ctrl,
		Spinner:    sp,
		Width:      80,
		Height:     24,
	}
}

// Busy reports whether any operation is in flight.
func (m *Model) Busy() bool { return m.Pending > 0 }

// ShowNotice replaces the current notice and returns its sequence number.
func (m *Model) ShowNotice(n tutor.Notice) int {
	m.NoticeSeq++
	m.Notice = &n
	return m.NoticeSeq
}

// ClearNotice hides the notice if seq is still the latest one.
func (m *Model) ClearNotice(seq int) {
	if seq == m.NoticeSeq {
		m.Notice = nil
	}
}
