package tutor

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/codetrek/codetrek/internal/api"
	"github.com/codetrek/codetrek/internal/log"
	"github.com/codetrek/codetrek/internal/sandbox"
	"github.com/codetrek/codetrek/internal/transcript"
)

const (
	chatFailedText     = "⚠️ Something went wrong while connecting to the server."
	chatEmptyText      = "No response from server."
	guideFailedText    = "Error getting guidance"
	evaluateFailedText = "Error evaluating code"
	evaluationHeading  = "## Code Evaluation\n"
)

// fimToken matches fill-in-the-middle control tokens some models leak.
var fimToken = regexp.MustCompile(`<\|fim_.*?\|>`)

// SendMessage appends text as a user message, sends it to the chat
// endpoint and appends the reply, or a failure message, as a bot message.
// Blank text does nothing.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	id := newTaskID()
	snap := c.store.Snapshot()
	c.store.AppendMessage(transcript.User(text))

	resp, err := c.backend.Chat(ctx, api.ChatRequest{
		Message: text,
		Topic:   snap.Topic,
		Level:   string(snap.Level),
	})
	c.observe(err)
	if err != nil {
		c.store.AppendMessage(transcript.Bot(chatFailedText))
		c.record(log.LogEvent{Event: log.EventChatFailed, TaskID: id, Topic: snap.Topic, Error: err.Error()})
		c.logger.Warn("chat failed", "task", id, "err", err)
		return err
	}

	content := ""
	if resp.BotResponse != nil {
		content = resp.BotResponse.Content
	}
	if content == "" {
		content = chatEmptyText
	}
	c.store.AppendMessage(transcript.Bot(fimToken.ReplaceAllString(content, "")))
	c.record(log.LogEvent{Event: log.EventChatSent, TaskID: id, Topic: snap.Topic, Level: string(snap.Level)})
	return nil
}

// GuideMe asks for guidance on the current question and delivers it
// through the bridge. Failures, including a missing question, produce an
// error notice and never touch the transcript.
func (c *Controller) GuideMe(ctx context.Context) error {
	id := newTaskID()
	q, ok := c.store.Question()
	if !ok {
		c.fail(id, guideFailedText, log.EventGuideFailed, ErrNoQuestion)
		return ErrNoQuestion
	}

	guide, err := c.backend.Guide(ctx, api.GuideRequest{
		Title:       q.Title,
		Description: q.Description,
		Difficulty:  q.Difficulty,
	})
	c.observe(err)
	if err != nil {
		c.fail(id, guideFailedText, log.EventGuideFailed, err)
		return err
	}
	c.bridge.Deliver(guide)
	c.record(log.LogEvent{Event: log.EventGuideDelivered, TaskID: id, Title: q.Title})
	return nil
}

// EvaluateCode asks the backend to assess code against the current
// question and delivers the feedback through the bridge. Failures produce
// an error notice only.
func (c *Controller) EvaluateCode(ctx context.Context, code string) error {
	id := newTaskID()
	q, ok := c.store.Question()
	if !ok {
		c.fail(id, evaluateFailedText, log.EventEvaluationFailed, ErrNoQuestion)
		return ErrNoQuestion
	}

	feedback, err := c.backend.Evaluate(ctx, api.EvaluateRequest{
		Title:       q.Title,
		Description: q.Description,
		Code:        code,
	})
	c.observe(err)
	if err != nil {
		c.fail(id, evaluateFailedText, log.EventEvaluationFailed, err)
		return err
	}
	c.bridge.Deliver(evaluationHeading + feedback)
	c.record(log.LogEvent{Event: log.EventEvaluationDelivered, TaskID: id, Title: q.Title})
	return nil
}

// RunCode executes code in the sandbox and appends the result as a
// code-output message.
func (c *Controller) RunCode(ctx context.Context, code string) transcript.ExecutionResult {
	id := newTaskID()
	res, err := c.runner.Run(ctx, code)
	c.store.AppendMessage(transcript.CodeOutput(res))

	ev := log.LogEvent{
		Event:      log.EventCodeExecuted,
		TaskID:     id,
		Engine:     res.Engine,
		Success:    log.Bool(res.Success),
		DurationMs: res.Elapsed.Milliseconds(),
	}
	var pe *sandbox.PolicyError
	if errors.As(err, &pe) {
		ev.Event = log.EventCodeRejected
		ev.Reason = pe.Term
	} else if err != nil {
		ev.Error = err.Error()
	}
	c.record(ev)
	c.logger.Debug("code executed", "task", id, "success", res.Success, "engine", res.Engine)
	return res
}

func (c *Controller) fail(id, text, event string, err error) {
	c.notify(Notice{Kind: NoticeError, Text: text, TaskID: id})
	c.record(log.LogEvent{Event: event, TaskID: id, Error: err.Error()})
	c.logger.Warn(text, "task", id, "err", err)
}
