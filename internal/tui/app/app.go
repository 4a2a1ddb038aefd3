// Package app provides the main TUI application that wires all views together.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/codetrek/codetrek/internal/bridge"
	"github.com/codetrek/codetrek/internal/config"
	"github.com/codetrek/codetrek/internal/session"
	"github.com/codetrek/codetrek/internal/tui"
	"github.com/codetrek/codetrek/internal/tui/commands"
	"github.com/codetrek/codetrek/internal/tui/views"
	"github.com/codetrek/codetrek/internal/tutor"
)

const (
	headerHeight = 1
	footerHeight = 2
)

// Options configures an App.
type Options struct {
	Context    context.Context
	Config     *config.Config
	Controller *tutor.Controller
	// Notices is the receive side of the controller's notifier. Optional.
	Notices <-chan tutor.Notice
	// MarkdownStyle is the glamour style for bot messages; "dark" if empty.
	MarkdownStyle string
}

// App is the main TUI application that wires all views together.
type App struct {
	model *tui.Model
	ctx   context.Context
	keys  tui.KeyMap

	// View models
	picker views.PickerModel
	chat   views.ChatModel
	editor views.EditorModel

	changes     chan struct{}
	stopObserve func()
	replies     <-chan string
	replySub    bridge.Subscription
	notices     <-chan tutor.Notice
}

// New creates an App. Call Close when the program exits.
func New(opts Options) *App {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	style := opts.MarkdownStyle
	if style == "" {
		style = "dark"
	}
	model := tui.NewModel(opts.Config, opts.Controller)

	a := &App{
		model:   model,
		ctx:     ctx,
		keys:    tui.DefaultKeyMap,
		picker:  views.NewPickerModel(opts.Config.TopicNames(), model.Width, model.Height-headerHeight),
		chat:    views.NewChatModel(style, model.Width/2, model.Height-headerHeight-footerHeight),
		editor:  views.NewEditorModel(opts.Config.Session.StarterCode, model.Width/2, model.Height-headerHeight-footerHeight),
		changes: make(chan struct{}, 1),
		notices: opts.Notices,
	}

	store := opts.Controller.Store()
	a.stopObserve = store.Observe(func(session.Change) {
		select {
		case a.changes <- struct{}{}:
		default:
		}
	})
	a.replies, a.replySub = opts.Controller.Bridge().Listen(8)

	if snap := store.Snapshot(); snap.HasTopic() {
		a.model.State = tui.StateTutor
		a.picker.SetCancellable(true)
		a.picker.Select(snap.Topic)
		a.chat.SetTranscript(snap.Transcript)
	}
	return a
}

// Close stops listening to the session.
func (a *App) Close() {
	a.stopObserve()
	a.replySub.Cancel()
}

// Model exposes the shared state.
func (a *App) Model() *tui.Model { return a.model }

// Init returns the initial command for the TUI.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		commands.ListenChangesCmd(a.changes),
		commands.ListenRepliesCmd(a.replies),
		a.chat.Focus(),
	}
	if a.notices != nil {
		cmds = append(cmds, commands.ListenNoticesCmd(a.notices))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the application state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == tui.KeyCtrlC {
			if a.model.CtrlCPending {
				return a, tea.Quit
			}
			a.model.CtrlCPending = true
			return a, tea.Tick(time.Second, func(time.Time) tea.Msg {
				return tui.CtrlCResetMsg{}
			})
		}
		if a.model.State == tui.StatePicker {
			var cmd tea.Cmd
			a.picker, cmd = a.picker.Update(msg)
			return a, cmd
		}
		return a.handleKey(msg)

	case tui.CtrlCResetMsg:
		a.model.CtrlCPending = false
		return a, nil

	case tui.TopicChosenMsg:
		a.model.Controller.SelectTopic(msg.Topic)
		a.model.State = tui.StateTutor
		a.picker.SetCancellable(true)
		a.refresh()
		return a, a.setFocus(tui.FocusChat)

	case tui.PickerCancelledMsg:
		a.model.State = tui.StateTutor
		return a, nil

	case views.SendChatMsg:
		return a, a.start(commands.SendMessageCmd(a.ctx, a.model.Controller, msg.Content))

	case tui.TranscriptChangedMsg:
		a.refresh()
		return a, commands.ListenChangesCmd(a.changes)

	case tui.ReplyMsg:
		a.refresh()
		return a, tea.Batch(a.setFocus(tui.FocusChat), commands.ListenRepliesCmd(a.replies))

	case tui.NoticeMsg:
		cmd := a.showNotice(msg.Notice)
		if a.notices != nil {
			cmd = tea.Batch(cmd, commands.ListenNoticesCmd(a.notices))
		}
		return a, cmd

	case tui.ClearNoticeMsg:
		a.model.ClearNotice(msg.Seq)
		return a, nil

	case tui.OpDoneMsg:
		a.finish()
		if msg.Err != nil {
			return a, a.showNotice(tutor.Notice{Kind: tutor.NoticeError, Text: validationText(msg.Err)})
		}
		return a, nil

	case tui.RunDoneMsg:
		a.finish()
		return a, nil

	case tui.CopiedMsg:
		if msg.Err != nil {
			return a, a.showNotice(tutor.Notice{Kind: tutor.NoticeError, Text: "Could not copy code: " + msg.Err.Error()})
		}
		return a, a.showNotice(tutor.Notice{Kind: tutor.NoticeInfo, Text: "Code copied to clipboard"})

	case spinner.TickMsg:
		if !a.model.Busy() {
			return a, nil
		}
		var cmd tea.Cmd
		a.model.Spinner, cmd = a.model.Spinner.Update(msg)
		return a, cmd
	}

	// Everything else (cursor blink and so on) goes to the focused panel.
	return a.routeToFocused(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := a.model.Controller
	switch {
	case key.Matches(msg, a.keys.Topic):
		a.model.State = tui.StatePicker
		return a, nil
	case key.Matches(msg, a.keys.Focus):
		return a, a.setFocus(a.model.Focus.Toggle())
	case key.Matches(msg, a.keys.Level):
		ctrl.SetLevel(ctrl.Store().Level().Next())
		return a, nil
	case key.Matches(msg, a.keys.Question):
		return a, a.start(commands.FetchQuestionCmd(a.ctx, ctrl))
	case key.Matches(msg, a.keys.Run):
		return a, a.start(commands.RunCodeCmd(a.ctx, ctrl, a.editor.Value()))
	case key.Matches(msg, a.keys.Guide):
		return a, a.start(commands.GuideCmd(a.ctx, ctrl))
	case key.Matches(msg, a.keys.Evaluate):
		return a, a.start(commands.EvaluateCmd(a.ctx, ctrl, a.editor.Value()))
	case key.Matches(msg, a.keys.Copy):
		return a, commands.CopyCodeCmd(a.editor.Value())
	case key.Matches(msg, a.keys.Upload):
		return a, a.showNotice(tutor.Notice{Kind: tutor.NoticeInfo, Text: "File upload is not available yet."})
	}
	return a.routeToFocused(msg)
}

func (a *App) routeToFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case a.model.State == tui.StatePicker:
		a.picker, cmd = a.picker.Update(msg)
	case a.model.Focus == tui.FocusEditor:
		a.editor, cmd = a.editor.Update(msg)
	default:
		a.chat, cmd = a.chat.Update(msg)
	}
	return a, cmd
}

// start counts an operation in flight and kicks the spinner on the first.
func (a *App) start(cmd tea.Cmd) tea.Cmd {
	a.model.Pending++
	if a.model.Pending == 1 {
		return tea.Batch(cmd, a.model.Spinner.Tick)
	}
	return cmd
}

func (a *App) finish() {
	if a.model.Pending > 0 {
		a.model.Pending--
	}
}

func (a *App) showNotice(n tutor.Notice) tea.Cmd {
	return commands.ClearNoticeCmd(a.model.ShowNotice(n))
}

func (a *App) setFocus(f tui.Focus) tea.Cmd {
	a.model.Focus = f
	if f == tui.FocusEditor {
		a.chat.Blur()
		return a.editor.Focus()
	}
	a.editor.Blur()
	return a.chat.Focus()
}

func (a *App) refresh() {
	a.chat.SetTranscript(a.model.Controller.Store().Snapshot().Transcript)
}

func (a *App) resize(width, height int) {
	a.model.Width = width
	a.model.Height = height

	body := max(height-headerHeight-footerHeight, 6)
	chatWidth := width * 55 / 100
	a.chat.SetSize(chatWidth, body)
	a.editor.SetSize(width-chatWidth, body)
	a.picker.SetSize(width, height-headerHeight)
}

func validationText(err error) string {
	switch {
	case errors.Is(err, tutor.ErrNoTopic):
		return "Select a topic first"
	case errors.Is(err, tutor.ErrNoQuestion):
		return "Get a question first"
	case errors.Is(err, tutor.ErrEmptyMessage):
		return "Message is empty"
	}
	return err.Error()
}

// View renders the current application state.
func (a *App) View() string {
	header := a.renderHeader()
	if a.model.State == tui.StatePicker {
		return lipgloss.JoinVertical(lipgloss.Left, header, a.picker.View())
	}

	status := ""
	if a.model.Busy() {
		status = a.model.Spinner.View() + " Thinking..."
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, a.chat.View(status), a.editor.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, body, a.renderFooter())
}

func (a *App) renderHeader() string {
	snap := a.model.Controller.Store().Snapshot()
	parts := []string{tui.TitleStyle.Render("CodeTrek")}
	if snap.HasTopic() {
		parts = append(parts, snap.Topic)
	}
	parts = append(parts, tui.LevelStyle.Render(string(snap.Level)))
	if snap.Question != nil {
		parts = append(parts, tui.DimStyle.Render(snap.Question.Title))
	}
	if a.model.Controller.Health().Unreachable() {
		parts = append(parts, tui.UnreachableStyle.Render("backend unreachable"))
	}
	return tui.StatusBarStyle.Width(max(a.model.Width, 20)).Render(strings.Join(parts, "  "))
}

func (a *App) renderFooter() string {
	var notice string
	if n := a.model.Notice; n != nil {
		if n.Kind == tutor.NoticeError {
			notice = tui.ErrorStyle.Render(n.Text)
		} else {
			notice = tui.SuccessStyle.Render(n.Text)
		}
	}

	var help []string
	for _, b := range a.keys.ShortHelp() {
		h := b.Help()
		help = append(help, fmt.Sprintf("%s %s", h.Key, h.Desc))
	}
	hint := strings.Join(help, " · ")
	if a.model.CtrlCPending {
		hint = tui.WarningStyle.Render("Press Ctrl+C again to exit")
	}
	return notice + "\n" + tui.DimStyle.Render(hint)
}
