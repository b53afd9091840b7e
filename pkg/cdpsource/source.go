package cdpsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/getmockd/netpanel/pkg/capture"
	"github.com/getmockd/netpanel/pkg/logging"
)

// DefaultURL is the DevTools endpoint of a locally started Chromium.
const DefaultURL = "http://127.0.0.1:9222"

// DefaultBuffer is the capacity of the Entries channel.
const DefaultBuffer = 1024

// ErrNoTargets is returned by Connect when no page target matches the filter.
var ErrNoTargets = errors.New("no matching page targets")

// Options configures a Source.
type Options struct {
	// URL is the DevTools HTTP or WebSocket endpoint. Defaults to DefaultURL.
	URL string

	// TabFilter restricts capture to tabs whose URL contains it, case-insensitively.
	TabFilter string

	// Buffer is the Entries channel capacity. Defaults to DefaultBuffer.
	Buffer int
}

// Source streams completed network transactions from a browser.
type Source struct {
	opts   Options
	logger *slog.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu      sync.Mutex
	tabs    map[target.ID]*tab
	out     chan *capture.Entry
	done    chan struct{}
	closed  bool
	dropped int
}

type tab struct {
	id     target.ID
	url    string
	ctx    context.Context
	cancel context.CancelFunc
	corr   *correlator
}

// New creates an unconnected Source. A nil logger discards output.
func New(opts Options, logger *slog.Logger) *Source {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	return &Source{
		opts:   opts,
		logger: logging.OrNop(logger),
		tabs:   make(map[target.ID]*tab),
		out:    make(chan *capture.Entry, opts.Buffer),
		done:   make(chan struct{}),
	}
}

// Entries returns the channel of completed captures. It is closed by Close.
func (s *Source) Entries() <-chan *capture.Entry {
	return s.out
}

// Connect attaches to every matching page target of the browser.
func (s *Source) Connect(ctx context.Context) error {
	s.logger.Info("connecting to Chromium", "url", s.opts.URL)

	s.allocCtx, s.allocCancel = chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), s.opts.URL)

	browserCtx, browserCancel := chromedp.NewContext(s.allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		return fmt.Errorf("failed to enumerate targets: %w", err)
	}

	attached := 0
	for _, t := range targets {
		if t.Type != "page" || !s.matchesTab(t.URL) {
			continue
		}
		if err := s.attach(t.TargetID, t.URL); err != nil {
			s.logger.Error("failed to attach to tab", "target_id", t.TargetID, "url", t.URL, "error", err)
			continue
		}
		attached++
	}
	if attached == 0 {
		return fmt.Errorf("%w (filter %q)", ErrNoTargets, s.opts.TabFilter)
	}

	s.logger.Info("attached to tabs", "count", attached)
	go s.sweepLoop()
	return nil
}

func (s *Source) attach(id target.ID, url string) error {
	tabCtx, tabCancel := chromedp.NewContext(s.allocCtx, chromedp.WithTargetID(id))
	t := &tab{id: id, url: url, ctx: tabCtx, cancel: tabCancel, corr: newCorrelator()}

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		tabCancel()
		return fmt.Errorf("failed to enable network domain: %w", err)
	}

	s.mu.Lock()
	s.tabs[id] = t
	s.mu.Unlock()

	chromedp.ListenTarget(tabCtx, s.handler(t))
	s.logger.Debug("attached to tab", "target_id", id, "url", url)
	return nil
}

func (s *Source) handler(t *tab) func(ev any) {
	fetch := func(ctx context.Context, id network.RequestID) ([]byte, error) {
		bodyCtx, cancel := context.WithCancel(t.ctx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		var body []byte
		err := chromedp.Run(bodyCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(id).Do(ctx)
			return err
		}))
		return body, err
	}

	return func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			t.corr.onRequestWillBeSent(e)
		case *network.EventResponseReceived:
			t.corr.onResponseReceived(e)
		case *network.EventLoadingFinished:
			if entry := t.corr.onLoadingFinished(e, fetch); entry != nil {
				s.emit(entry)
			}
		case *network.EventLoadingFailed:
			t.corr.onLoadingFailed(e)
		}
	}
}

// emit never blocks the CDP event loop; captures are dropped when the
// consumer falls behind by more than the channel capacity.
func (s *Source) emit(e *capture.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- e:
	default:
		s.dropped++
		s.logger.Warn("capture dropped, consumer too slow", "url", e.Request.URL, "dropped", s.dropped)
	}
}

func (s *Source) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			tabs := make([]*tab, 0, len(s.tabs))
			for _, t := range s.tabs {
				tabs = append(tabs, t)
			}
			s.mu.Unlock()
			for _, t := range tabs {
				if n := t.corr.sweep(); n > 0 {
					s.logger.Debug("forgot stale requests", "target_id", t.id, "count", n)
				}
			}
		case <-s.done:
			return
		}
	}
}

// Dropped returns how many captures were discarded because Entries was full.
func (s *Source) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// TabCount returns the number of attached tabs.
func (s *Source) TabCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tabs)
}

// Close detaches from the browser and closes Entries. It is safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	tabs := s.tabs
	s.tabs = make(map[target.ID]*tab)
	close(s.out)
	s.mu.Unlock()

	for _, t := range tabs {
		t.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.logger.Info("CDP source closed")
	return nil
}

func (s *Source) matchesTab(url string) bool {
	if s.opts.TabFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(s.opts.TabFilter))
}
