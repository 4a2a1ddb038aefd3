package backend

import (
	"context"
	"database/sql"
	"fmt"

	clog "github.com/charmbracelet/log"

	"github.com/codetrek/codetrek/internal/problems"
	"github.com/codetrek/codetrek/internal/sandbox"
)

// Options configures Build.
type Options struct {
	DB          *sql.DB
	DatasetPath string // empty uses the embedded dataset
	Sandbox     *sandbox.Sandbox
	Logger      *clog.Logger
}

// Build creates the tables, seeds the problem catalogue and returns a
// ready Server.
func Build(ctx context.Context, opts Options) (*Server, error) {
	ps, err := problems.New(opts.DB)
	if err != nil {
		return nil, err
	}

	var dataset []problems.Problem
	if opts.DatasetPath != "" {
		dataset, err = problems.LoadDataset(opts.DatasetPath)
	} else {
		dataset, err = problems.EmbeddedDataset()
	}
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	n, err := ps.Seed(ctx, dataset)
	if err != nil {
		return nil, err
	}
	if opts.Logger != nil {
		opts.Logger.Info("problem catalogue ready", "inserted", n, "dataset", len(dataset))
	}

	history, err := NewHistory(opts.DB)
	if err != nil {
		return nil, err
	}

	sb := opts.Sandbox
	if sb == nil {
		sb = sandbox.New(sandbox.Options{})
	}
	responder, err := NewResponder(sb)
	if err != nil {
		return nil, err
	}
	return NewServer(ps, history, responder, opts.Logger), nil
}
