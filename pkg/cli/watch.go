package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/netpanel/pkg/cdpsource"
	"github.com/getmockd/netpanel/pkg/cli/internal/output"
	"github.com/getmockd/netpanel/pkg/config"
	"github.com/getmockd/netpanel/pkg/metrics"
	"github.com/getmockd/netpanel/pkg/panelapi"
	"github.com/getmockd/netpanel/pkg/session"
)

// shutdownTimeout bounds the graceful stop of the panel API server.
const shutdownTimeout = 5 * time.Second

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream requests from a running Chromium",
		Long: `Attach to a Chromium started with --remote-debugging-port and print every
completed request as it is captured. With --listen, the session is also served
over the panel API, including a WebSocket event stream at /api/stream and
Prometheus metrics at /metrics.

Examples:
  # Watch every tab of a local browser
  netpanel watch

  # Watch one app and serve the panel API
  netpanel watch --tab-filter localhost:3000 --listen 127.0.0.1:7070`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runWatch(ctx, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("cdp-url", config.DefaultCDPURL, "Chromium DevTools endpoint")
	cmd.Flags().String("tab-filter", "", "Only capture tabs whose URL contains this text")
	cmd.Flags().String("listen", "", "Serve the panel API on this address, e.g. 127.0.0.1:7070")
	addPipelineFlags(cmd.Flags())
	return cmd
}

func (a *app) runWatch(ctx context.Context, out io.Writer) error {
	store := session.New(a.logger)
	defer store.Close()
	m := metrics.New()
	m.TrackSessionSize(store.Len)
	p := a.newPipeline(store, m)

	src := cdpsource.New(a.cfg.CDPOptions(), a.logger)
	defer func() { _ = src.Close() }()
	if err := src.Connect(ctx); err != nil {
		return fmt.Errorf("failed to attach to %s: %w", a.cfg.CDPURL, err)
	}

	if a.cfg.Listen != "" {
		srv, addr, err := a.serveAPI(store, panelapi.Options{Stats: p.Stats, Metrics: m})
		if err != nil {
			return err
		}
		a.logger.Info("panel API listening", "addr", addr.String())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("panel API shutdown failed", "error", err)
			}
		}()
	}

	events, unsubscribe := store.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printEvents(out, events, a.cfg.JSON)
	}()

	err := p.Run(ctx, src.Entries())
	unsubscribe()
	<-printed

	stats := p.Stats()
	a.logger.Info("watch stopped",
		"received", stats.Received,
		"appended", stats.Appended,
		"dropped", stats.Dropped,
		"body_failures", stats.BodyFailures,
		"source_dropped", src.Dropped(),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveAPI starts the panel API on the configured address and returns the
// server with the address it is bound to.
func (a *app) serveAPI(store *session.Store, opts panelapi.Options) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", a.cfg.Listen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", a.cfg.Listen, err)
	}

	srv := &http.Server{
		Handler:           panelapi.New(store, opts, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("panel API server failed", "error", err)
		}
	}()
	return srv, ln.Addr(), nil
}

// printEvents writes one line per appended item until events is closed.
// In JSON mode every event is written as a JSON line.
func printEvents(w io.Writer, events <-chan session.Event, jsonOut bool) {
	for ev := range events {
		if jsonOut {
			_ = output.JSONLine(w, ev)
			continue
		}
		switch ev.Type {
		case session.EventAppended:
			it := ev.Item
			fmt.Fprintf(w, "%s  %-5s %-7s %-12s %s %s\n",
				it.Timestamp.Local().Format(time.TimeOnly), it.Category, it.Method, status(*it), it.Name, elapsed(it.Time))
		case session.EventCleared:
			fmt.Fprintln(w, "-- session cleared --")
		}
	}
}
