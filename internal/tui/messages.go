package tui

import (
	"github.com/codetrek/codetrek/internal/transcript"
	"github.com/codetrek/codetrek/internal/tutor"
)

// ============================================================================
// Session Messages
// ============================================================================

// TranscriptChangedMsg signals that the session store changed and the
// visible transcript should be re-read.
type TranscriptChangedMsg struct{}

// ReplyMsg carries a guide or evaluation reply delivered through the bridge.
type ReplyMsg struct {
	Text string
}

// NoticeMsg carries a transient notice from the controller.
type NoticeMsg struct {
	Notice tutor.Notice
}

// ClearNoticeMsg hides the notice with the given sequence number if it is
// still showing.
type ClearNoticeMsg struct {
	Seq int
}

// TopicChosenMsg is sent when the user picks a topic.
type TopicChosenMsg struct {
	Topic string
}

// PickerCancelledMsg is sent when the user leaves the topic picker without
// choosing.
type PickerCancelledMsg struct{}

// ============================================================================
// Operation Messages
// ============================================================================

// OpDoneMsg reports that a remote operation finished. Err is set only for
// validation failures the user needs to see; remote failures are already
// reflected in the transcript or a notice.
type OpDoneMsg struct {
	Op  string
	Err error
}

// RunDoneMsg reports a finished code execution.
type RunDoneMsg struct {
	Result transcript.ExecutionResult
}

// CopiedMsg reports the outcome of copying code to the clipboard.
type CopiedMsg struct {
	Err error
}

// ============================================================================
// Utility Messages
// ============================================================================

// CtrlCResetMsg clears a pending Ctrl+C confirmation.
type CtrlCResetMsg struct{}
