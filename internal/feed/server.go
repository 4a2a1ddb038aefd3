package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Handler returns an HTTP handler serving the feed at /ws.
func (b *Broadcaster) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		// The feed is read-only and bound to a local address.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("feed upgrade failed", "err", err)
			return
		}
		b.logger.Debug("feed client connected", "remote", r.RemoteAddr)
		c := b.addClient(conn)

		go func() {
			defer func() {
				b.removeClient(c)
				b.logger.Debug("feed client disconnected", "remote", r.RemoteAddr)
			}()
			// Drain reads so close frames are processed.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
	return mux
}

// Serve serves the feed on ln until ctx is cancelled.
func (b *Broadcaster) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: b.Handler(), ReadHeaderTimeout: 10 * time.Second}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("feed: serving: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		b.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
