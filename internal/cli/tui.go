package cli

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/codetrek/codetrek/internal/feed"
	"github.com/codetrek/codetrek/internal/tui"
	"github.com/codetrek/codetrek/internal/tui/app"
)

// runTUI starts the interactive session, plus the transcript feed when
// feed.addr is configured.
func runTUI(cmd *cobra.Command) error {
	// The TUI owns the terminal, so diagnostics go to the log file.
	env, err := loadEnvironment(nil)
	if err != nil {
		return err
	}
	defer env.Close()

	notifier := tui.NewNotifier(32)
	ctrl, err := env.controller(notifier.Notify)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tuiApp := app.New(app.Options{
		Context:    ctx,
		Config:     env.cfg,
		Controller: ctrl,
		Notices:    notifier.C(),
	})
	defer tuiApp.Close()

	g, gctx := errgroup.WithContext(ctx)
	if addr := env.cfg.Feed.Addr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("starting transcript feed: %w", err)
		}
		b := feed.NewBroadcaster(ctrl.Store(), env.logger)
		env.logger.Info("transcript feed listening", "addr", ln.Addr().String())
		g.Go(func() error { return b.Serve(gctx, ln) })
	}
	g.Go(func() error {
		defer cancel()
		return tui.Run(tuiApp, tea.WithContext(gctx))
	})
	return g.Wait()
}
