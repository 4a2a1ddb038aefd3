package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/codetrek/codetrek/internal/api"
	"github.com/codetrek/codetrek/internal/config"
	"github.com/codetrek/codetrek/internal/log"
	"github.com/codetrek/codetrek/internal/sandbox"
	"github.com/codetrek/codetrek/internal/session"
	"github.com/codetrek/codetrek/internal/tutor"
)

// environment is what every command needs: the project root, the
// effective config and the diagnostic logger.
type environment struct {
	root   string
	cfg    *config.Config
	logger *clog.Logger
	closer io.Closer
}

// loadEnvironment resolves the project root and config. Diagnostics go to
// diag when non-nil, otherwise to the configured diag file.
func loadEnvironment(diag io.Writer) (*environment, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	env := &environment{root: root, cfg: cfg}
	if diag == nil {
		path := config.Resolve(root, cfg.Logging.DiagPath)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening diagnostic log: %w", err)
		}
		diag, env.closer = f, f
	}
	env.logger = newLogger(diag, cfg.Logging.Level)
	return env, nil
}

func newLogger(w io.Writer, level string) *clog.Logger {
	logger := clog.NewWithOptions(w, clog.Options{
		Prefix:          "codetrek",
		ReportTimestamp: true,
		Level:           clog.WarnLevel,
	})
	if lvl, err := clog.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	if debug {
		logger.SetLevel(clog.DebugLevel)
	}
	return logger
}

// Close releases the diagnostic log file, if any.
func (e *environment) Close() {
	if e.closer != nil {
		e.closer.Close()
	}
}

func (e *environment) sandbox() *sandbox.Sandbox {
	sc := e.cfg.Sandbox
	timeout := time.Duration(sc.TimeoutMs) * time.Millisecond

	var engine sandbox.Engine
	switch sc.Engine {
	case config.EngineNode:
		engine = &sandbox.Process{NodePath: sc.NodePath, MaxOldSpaceMB: sc.MemoryMB, Timeout: timeout}
	default:
		engine = &sandbox.Isolated{MaxCallStack: sc.MaxCallStack, MemoryMB: sc.MemoryMB}
	}
	return sandbox.New(sandbox.Options{Engine: engine, Timeout: timeout, Deny: sc.Denylist})
}

func (e *environment) client() *api.Client {
	bc := e.cfg.Backend
	return api.NewClient(bc.BaseURL, bc.Token, time.Duration(bc.TimeoutSeconds)*time.Second)
}

// controller builds a tutoring controller over a fresh session at the
// configured default level.
func (e *environment) controller(notify func(tutor.Notice)) (*tutor.Controller, error) {
	journal, err := log.NewLogger(config.Resolve(e.root, e.cfg.Logging.EventsPath))
	if err != nil {
		return nil, err
	}

	store := session.NewStore()
	if lvl, err := session.ParseLevel(e.cfg.Session.DefaultLevel); err == nil && lvl != store.Level() {
		store.SetLevel(lvl)
	}

	return tutor.New(tutor.Options{
		Store:   store,
		Backend: e.client(),
		Runner:  e.sandbox(),
		Journal: journal,
		Notify:  notify,
		Logger:  e.logger,
		Health:  tutor.NewHealth(e.cfg.Health.FailureThreshold),
	}), nil
}
