// Package commands provides tea.Cmd constructors that run tutoring
// operations off the UI goroutine.
package commands

import (
	"context"
	"errors"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codetrek/codetrek/internal/tui"
	"github.com/codetrek/codetrek/internal/tutor"
)

// Operation names reported in OpDoneMsg.
const (
	OpQuestion = "question"
	OpChat     = "chat"
	OpGuide    = "guide"
	OpEvaluate = "evaluate"
)

// NoticeTTL is how long a notice stays on screen.
const NoticeTTL = 4 * time.Second

// FetchQuestionCmd fetches a question for the current topic and level.
func FetchQuestionCmd(ctx context.Context, c *tutor.Controller) tea.Cmd {
	return func() tea.Msg {
		err := c.FetchCurrent(ctx)
		return tui.OpDoneMsg{Op: OpQuestion, Err: userError(err)}
	}
}

// SendMessageCmd sends a chat message.
func SendMessageCmd(ctx context.Context, c *tutor.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		err := c.SendMessage(ctx, text)
		return tui.OpDoneMsg{Op: OpChat, Err: userError(err)}
	}
}

// GuideCmd asks for guidance on the current question. Failures are
// reported through the notifier.
func GuideCmd(ctx context.Context, c *tutor.Controller) tea.Cmd {
	return func() tea.Msg {
		_ = c.GuideMe(ctx)
		return tui.OpDoneMsg{Op: OpGuide}
	}
}

// EvaluateCmd asks for feedback on code. Failures are reported through the
// notifier.
func EvaluateCmd(ctx context.Context, c *tutor.Controller, code string) tea.Cmd {
	return func() tea.Msg {
		_ = c.EvaluateCode(ctx, code)
		return tui.OpDoneMsg{Op: OpEvaluate}
	}
}

// RunCodeCmd executes code in the sandbox.
func RunCodeCmd(ctx context.Context, c *tutor.Controller, code string) tea.Cmd {
	return func() tea.Msg {
		return tui.RunDoneMsg{Result: c.RunCode(ctx, code)}
	}
}

// CopyCodeCmd writes code to the system clipboard verbatim.
func CopyCodeCmd(code string) tea.Cmd {
	return func() tea.Msg {
		return tui.CopiedMsg{Err: clipboard.WriteAll(code)}
	}
}

// ListenChangesCmd waits for the next store change signal.
func ListenChangesCmd(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return tui.TranscriptChangedMsg{}
	}
}

// ListenRepliesCmd waits for the next bridge reply.
func ListenRepliesCmd(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		text, ok := <-ch
		if !ok {
			return nil
		}
		return tui.ReplyMsg{Text: text}
	}
}

// ListenNoticesCmd waits for the next controller notice.
func ListenNoticesCmd(ch <-chan tutor.Notice) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return tui.NoticeMsg{Notice: n}
	}
}

// ClearNoticeCmd hides notice seq after NoticeTTL.
func ClearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(NoticeTTL, func(time.Time) tea.Msg {
		return tui.ClearNoticeMsg{Seq: seq}
	})
}

// userError keeps validation errors, which the user can act on, and drops
// everything else.
func userError(err error) error {
	switch {
	case errors.Is(err, tutor.ErrNoTopic),
		errors.Is(err, tutor.ErrEmptyMessage),
		errors.Is(err, tutor.ErrNoQuestion):
		return err
	}
	return nil
}
