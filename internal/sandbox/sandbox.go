// Package sandbox runs user-submitted JavaScript snippets and classifies the
// outcome.
//
// A snippet is the body of a function: `return 2+2` yields 4. Before any
// code runs, the source is checked against a substring denylist. Execution
// happens in an Engine with no module loader and no host bindings other
// than a captured console, under a wall-clock budget. Isolated runs the
// interpreter in a memory-capped child process; Process runs node under its
// permission model.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codetrek/codetrek/internal/transcript"
)

// DefaultTimeout is the wall-clock budget used when Options.Timeout is zero.
const DefaultTimeout = 2 * time.Second

// ErrCancelled is returned when the caller's context is cancelled before
// the snippet finishes.
var ErrCancelled = errors.New("Execution cancelled")

// PolicyError reports a snippet rejected before evaluation.
type PolicyError struct {
	Term string // denylisted term that matched
}

func (e *PolicyError) Error() string {
	return "Import statements are not allowed for security reasons"
}

// RuntimeError is a fault raised by the snippet itself.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string { return e.Message }

// BudgetError reports a snippet that exceeded its wall-clock budget.
type BudgetError struct {
	Budget time.Duration
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("Execution timed out after %s", e.Budget)
}

// Outcome is what an Engine produces for a snippet that completed.
type Outcome struct {
	Value any
	Logs  []string
}

// Engine evaluates a snippet. Run returns a *RuntimeError for faults raised
// by the snippet, and ctx.Err() (or an error wrapping it) when ctx ends
// first. Logs captured before a failure are returned alongside the error.
type Engine interface {
	Name() string
	Run(ctx context.Context, code string) (Outcome, error)
}

// Options configures a Sandbox.
type Options struct {
	Engine  Engine        // nil selects the embedded interpreter
	Timeout time.Duration // zero selects DefaultTimeout
	Deny    []string      // nil selects DefaultDenylist
}

// Sandbox executes snippets with a policy pre-check and a time budget.
// It is safe for concurrent use.
type Sandbox struct {
	engine  Engine
	timeout time.Duration
	policy  Policy
}

// New creates a Sandbox from opts.
func New(opts Options) *Sandbox {
	s := &Sandbox{
		engine:  opts.Engine,
		timeout: opts.Timeout,
		policy:  Policy{Deny: opts.Deny},
	}
	if s.engine == nil {
		s.engine = &Interpreter{}
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.policy.Deny == nil {
		s.policy.Deny = DefaultDenylist
	}
	return s
}

// Engine returns the name of the engine snippets run on.
func (s *Sandbox) Engine() string { return s.engine.Name() }

// Execute runs code and always returns a result. On success Output holds
// the snippet's return value; otherwise it holds the failure message.
func (s *Sandbox) Execute(ctx context.Context, code string) transcript.ExecutionResult {
	res, _ := s.Run(ctx, code)
	return res
}

// Run is Execute that also returns the classified failure: a *PolicyError,
// *RuntimeError, *BudgetError or ErrCancelled. The result is complete
// either way.
func (s *Sandbox) Run(ctx context.Context, code string) (res transcript.ExecutionResult, err error) {
	start := time.Now()
	res = transcript.ExecutionResult{Code: code, Engine: s.engine.Name()}
	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeError{Message: fmt.Sprintf("internal error: %v", r)}
			res.Output = err.Error()
			res.Success = false
		}
		res.Elapsed = time.Since(start)
	}()

	if err := s.policy.Check(code); err != nil {
		res.Output = err.Error()
		return res, err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.engine.Run(runCtx, code)
	res.Logs = out.Logs
	if err != nil {
		err = s.classify(ctx, runCtx, err)
		res.Output = err.Error()
		return res, err
	}
	res.Output = out.Value
	res.Success = true
	return res, nil
}

// classify maps context errors from the engine to budget or cancellation.
func (s *Sandbox) classify(parent, runCtx context.Context, err error) error {
	var rt *RuntimeError
	if errors.As(err, &rt) {
		return rt
	}
	if parent.Err() != nil {
		return ErrCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) || runCtx.Err() != nil {
		return &BudgetError{Budget: s.timeout}
	}
	return &RuntimeError{Message: err.Error()}
}
