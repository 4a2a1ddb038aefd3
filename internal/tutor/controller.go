// Package tutor orchestrates a tutoring session: topic and level selection,
// question fetches, chat, guidance, evaluation and code execution.
//
// Operations block only the calling goroutine. Results reach the user
// through the session store (transcript entries), the bridge (guide and
// evaluation replies) or the notifier (transient notices).
package tutor

import (
	"context"
	"errors"
	"io"
	"sync"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/codetrek/codetrek/internal/api"
	"github.com/codetrek/codetrek/internal/bridge"
	"github.com/codetrek/codetrek/internal/log"
	"github.com/codetrek/codetrek/internal/session"
	"github.com/codetrek/codetrek/internal/transcript"
)

// Validation errors. None of them changes session state.
var (
	ErrNoTopic      = errors.New("no topic selected")
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoQuestion   = errors.New("no current question")
)

// Backend is the remote tutoring service.
type Backend interface {
	Problem(ctx context.Context, topic, difficulty string) (*api.Problem, error)
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	Guide(ctx context.Context, req api.GuideRequest) (string, error)
	Evaluate(ctx context.Context, req api.EvaluateRequest) (string, error)
}

// Runner executes code snippets. The result is complete even when err is
// non-nil.
type Runner interface {
	Run(ctx context.Context, code string) (transcript.ExecutionResult, error)
}

// Journal records session events.
type Journal interface {
	Append(event log.LogEvent) error
}

// NoticeKind classifies a notice.
type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice is a transient message for the user that is not part of the
// transcript.
type Notice struct {
	Kind   NoticeKind
	Text   string
	TaskID string
}

// Options configures a Controller. Store, Backend and Runner are required.
type Options struct {
	Store   *session.Store
	Bridge  *bridge.Bridge // defaults to a bridge over Store
	Backend Backend
	Runner  Runner
	Journal Journal      // optional
	Notify  func(Notice) // optional
	Logger  *clog.Logger // optional
	Health  *Health      // defaults to NewHealth(0)
}

// Controller runs session operations.
type Controller struct {
	store   *session.Store
	bridge  *bridge.Bridge
	backend Backend
	runner  Runner
	journal Journal
	notify  func(Notice)
	logger  *clog.Logger
	health  *Health

	mu      sync.Mutex
	fetches map[string]inflight // by task ID
}

type inflight struct {
	epoch  uint64
	cancel context.CancelFunc
}

// New creates a Controller.
func New(opts Options) *Controller {
	c := &Controller{
		store:   opts.Store,
		bridge:  opts.Bridge,
		backend: opts.Backend,
		runner:  opts.Runner,
		journal: opts.Journal,
		notify:  opts.Notify,
		logger:  opts.Logger,
		health:  opts.Health,
		fetches: make(map[string]inflight),
	}
	if c.bridge == nil {
		c.bridge = bridge.New(c.store)
	}
	if c.journal == nil {
		c.journal = nopJournal{}
	}
	if c.notify == nil {
		c.notify = func(Notice) {}
	}
	if c.logger == nil {
		c.logger = clog.New(io.Discard)
	}
	if c.health == nil {
		c.health = NewHealth(0)
	}
	return c
}

// Store returns the session store.
func (c *Controller) Store() *session.Store { return c.store }

// Bridge returns the reply bridge.
func (c *Controller) Bridge() *bridge.Bridge { return c.bridge }

// Health returns the backend health tracker.
func (c *Controller) Health() *Health { return c.health }

// SetLevel changes the difficulty used by subsequent fetches.
func (c *Controller) SetLevel(level session.Level) {
	c.store.SetLevel(level)
	c.logger.Debug("level changed", "level", level)
}

// SelectTopic selects topic. A non-empty topic reseeds the transcript with
// a greeting and cancels question fetches issued under earlier topics;
// their results are discarded. An empty topic clears the selection only.
func (c *Controller) SelectTopic(topic string) {
	c.store.SetTopic(topic)
	epoch := c.store.Epoch()
	c.record(log.LogEvent{Event: log.EventTopicSelected, Topic: topic, Epoch: epoch})
	c.logger.Info("topic selected", "topic", topic)
	if topic != "" {
		c.cancelFetchesBefore(epoch)
	}
}

func newTaskID() string { return uuid.New().String() }

func (c *Controller) record(ev log.LogEvent) {
	if err := c.journal.Append(ev); err != nil {
		c.logger.Warn("journal append failed", "event", ev.Event, "err", err)
	}
}

// observe updates backend health from the outcome of a remote call.
func (c *Controller) observe(err error) {
	switch {
	case err == nil:
		c.health.RecordSuccess()
	case api.IsTransport(err) && !errors.Is(err, context.Canceled):
		c.health.RecordFailure()
	default:
		// The backend answered.
		c.health.RecordSuccess()
	}
}

func (c *Controller) trackFetch(id string, epoch uint64, cancel context.CancelFunc) {
	c.mu.Lock()
	c.fetches[id] = inflight{epoch: epoch, cancel: cancel}
	c.mu.Unlock()
}

func (c *Controller) untrackFetch(id string) {
	c.mu.Lock()
	delete(c.fetches, id)
	c.mu.Unlock()
}

func (c *Controller) cancelFetchesBefore(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, f := range c.fetches {
		if f.epoch < epoch {
			f.cancel()
			delete(c.fetches, id)
		}
	}
}

// InFlight returns the number of question fetches still running.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fetches)
}

type nopJournal struct{}

func (nopJournal) Append(log.LogEvent) error { return nil }
