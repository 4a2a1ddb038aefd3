package tui

import "github.com/charmbracelet/lipgloss"

const (
	primaryColor   = "#7C3AED" // Purple
	secondaryColor = "#10B981" // Green
	warningColor   = "#F59E0B" // Amber
	errorColor     = "#EF4444" // Red
	dimColor       = "#6B7280" // Gray
)

// Style variables for consistent TUI rendering.
var (
	// BoxStyle provides a rounded border box with primary color.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(dimColor)).
			Padding(0, 1)

	// FocusedBoxStyle marks the panel receiving key input.
	FocusedBoxStyle = BoxStyle.
			BorderForeground(lipgloss.Color(primaryColor))

	// TitleStyle renders titles in primary color with bold.
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	// DimStyle renders dim/muted text.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	// SuccessStyle renders success messages in green.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor))

	// ErrorStyle renders error messages in red.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	// WarningStyle renders warning messages in amber.
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))

	// StatusBarStyle provides styling for the status bar.
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2937")).
			Foreground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)

	// LevelStyle renders the current level badge.
	LevelStyle = lipgloss.NewStyle().
			Background(lipgloss.Color(primaryColor)).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	// UnreachableStyle renders the backend health badge.
	UnreachableStyle = lipgloss.NewStyle().
				Background(lipgloss.Color(errorColor)).
				Foreground(lipgloss.Color("#FFFFFF")).
				Padding(0, 1)

	// UserStyle prefixes user messages.
	UserStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor)).
			Bold(true)

	// BotStyle prefixes bot messages.
	BotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	// CodeOutputStyle frames code-output entries.
	CodeOutputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color(dimColor)).
			PaddingLeft(1)
)
