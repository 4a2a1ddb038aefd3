// Package tui implements the terminal user interface using Bubble Tea.
package tui

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/codetrek/codetrek/internal/tutor"
)

// Common key binding constants.
const (
	KeyCtrlC = "ctrl+c"
	KeyTab   = "tab"
	KeyEnter = "enter"
	KeyEsc   = "esc"
)

// IsTTY returns true if stdout is connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run starts the TUI program with the given model in alternate screen mode.
// Callers are expected to check IsTTY first.
func Run(m tea.Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}

// Notifier buffers controller notices for the UI. Notices that arrive while
// the buffer is full are dropped.
type Notifier struct {
	ch chan tutor.Notice
}

// NewNotifier creates a Notifier holding up to size pending notices.
func NewNotifier(size int) *Notifier {
	if size <= 0 {
		size = 16
	}
	return &Notifier{ch: make(chan tutor.Notice, size)}
}

// Notify queues n. It never blocks.
func (n *Notifier) Notify(notice tutor.Notice) {
	select {
	case n.ch <- notice:
	default:
	}
}

// C returns the receive side of the buffer.
func (n *Notifier) C() <-chan tutor.Notice { return n.ch }
