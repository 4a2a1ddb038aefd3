package tutor

import (
	"context"
	"errors"
	"time"

	"github.com/codetrek/codetrek/internal/api"
	"github.com/codetrek/codetrek/internal/log"
	"github.com/codetrek/codetrek/internal/session"
	"github.com/codetrek/codetrek/internal/transcript"
)

// ErrSuperseded is returned by FetchQuestion when the topic changed while
// the fetch was in flight. Its outcome was discarded.
var ErrSuperseded = errors.New("fetch superseded by topic change")

const (
	fetchDefaultText = "Unable to fetch a question right now."
	fetchNetworkText = "⚠️ Network error. Please try again later."
)

// FetchQuestion retrieves a problem for topic and difficulty. Exactly one
// bot message is appended: the question text on success (which also
// becomes the current question), or a failure message. The current
// question is left unchanged on failure. An empty topic does nothing.
func (c *Controller) FetchQuestion(ctx context.Context, topic, difficulty string) error {
	return c.fetch(ctx, topic, difficulty, c.store.Epoch())
}

// FetchCurrent fetches a question for the selected topic and level.
func (c *Controller) FetchCurrent(ctx context.Context) error {
	snap := c.store.Snapshot()
	return c.fetch(ctx, snap.Topic, string(snap.Level), snap.Epoch)
}

// fetch runs a question fetch on behalf of the topic selection identified
// by epoch. A fetch whose epoch is already stale is discarded before any
// request is made.
func (c *Controller) fetch(ctx context.Context, topic, difficulty string, epoch uint64) error {
	if topic == "" {
		return ErrNoTopic
	}

	id := newTaskID()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.trackFetch(id, epoch, cancel)
	defer c.untrackFetch(id)
	if c.store.Epoch() != epoch {
		c.discard(log.LogEvent{TaskID: id, Topic: topic, Level: difficulty, Epoch: epoch})
		return ErrSuperseded
	}

	start := time.Now()
	c.logger.Debug("fetching question", "task", id, "topic", topic, "difficulty", difficulty)
	p, err := c.backend.Problem(ctx, topic, difficulty)

	ev := log.LogEvent{
		TaskID:     id,
		Topic:      topic,
		Level:      difficulty,
		Epoch:      epoch,
		DurationMs: time.Since(start).Milliseconds(),
	}

	var (
		msg transcript.Message
		q   *session.Question
	)
	switch {
	case err == nil:
		d := p.Difficulty
		if d == "" {
			d = difficulty
		}
		question := session.NewQuestion(p.Title, p.Description, d)
		q = &question
		msg = transcript.Bot(question.FullText)
	case api.IsTransport(err):
		msg = transcript.Bot(fetchNetworkText)
	default:
		text := api.ServerMessage(err)
		if text == "" {
			text = fetchDefaultText
		}
		msg = transcript.Bot("⚠️ " + text)
	}

	if !c.store.ApplyFetch(epoch, msg, q) {
		c.discard(ev)
		return ErrSuperseded
	}
	c.observe(err)

	if err != nil {
		ev.Event = log.EventQuestionFailed
		ev.Error = err.Error()
		c.record(ev)
		c.logger.Warn("question fetch failed", "task", id, "topic", topic, "err", err)
		return err
	}
	ev.Event = log.EventQuestionFetched
	ev.Title = q.Title
	c.record(ev)
	c.logger.Info("question fetched", "task", id, "title", q.Title)
	return nil
}

func (c *Controller) discard(ev log.LogEvent) {
	ev.Event = log.EventQuestionDiscarded
	c.record(ev)
	c.logger.Debug("discarded superseded fetch", "task", ev.TaskID, "topic", ev.Topic)
}
