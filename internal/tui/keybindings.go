package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the TUI.
type KeyMap struct {
	// Navigation
	Focus  key.Binding
	Topic  key.Binding
	Escape key.Binding

	// Session
	Level    key.Binding
	Question key.Binding
	Send     key.Binding
	NewLine  key.Binding

	// Code
	Run      key.Binding
	Guide    key.Binding
	Evaluate key.Binding
	Copy     key.Binding
	Upload   key.Binding

	Quit key.Binding
}

// DefaultKeyMap provides the default key bindings for the TUI.
var DefaultKeyMap = KeyMap{
	Focus: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "chat/editor"),
	),
	Topic: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "topic"),
	),
	Escape: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Level: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "level"),
	),
	Question: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("ctrl+n", "get question"),
	),
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	NewLine: key.NewBinding(
		key.WithKeys("shift+enter", "ctrl+j"),
		key.WithHelp("ctrl+j", "new line"),
	),
	Run: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "run"),
	),
	Guide: key.NewBinding(
		key.WithKeys("ctrl+g"),
		key.WithHelp("ctrl+g", "guide me"),
	),
	Evaluate: key.NewBinding(
		key.WithKeys("ctrl+e"),
		key.WithHelp("ctrl+e", "evaluate"),
	),
	Copy: key.NewBinding(
		key.WithKeys("ctrl+y"),
		key.WithHelp("ctrl+y", "copy code"),
	),
	Upload: key.NewBinding(
		key.WithKeys("ctrl+u"),
		key.WithHelp("ctrl+u", "upload"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "exit"),
	),
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Focus, k.Topic, k.Level, k.Question, k.Run,
		k.Guide, k.Evaluate, k.Copy, k.Upload, k.Quit,
	}
}
