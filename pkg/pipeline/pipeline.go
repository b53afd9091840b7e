package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/getmockd/netpanel/pkg/capture"
	"github.com/getmockd/netpanel/pkg/classify"
	"github.com/getmockd/netpanel/pkg/entry"
	"github.com/getmockd/netpanel/pkg/logging"
	"github.com/getmockd/netpanel/pkg/metrics"
	"github.com/getmockd/netpanel/pkg/normalize"
	"github.com/getmockd/netpanel/pkg/session"
)

// DefaultConcurrency is the number of captures Run normalizes at once.
const DefaultConcurrency = 4

// Options configures a Pipeline.
type Options struct {
	// Concurrency bounds in-flight normalizations in Run. Zero means DefaultConcurrency.
	Concurrency int

	// Metrics receives per-stage measurements. Optional.
	Metrics *metrics.Set
}

// Classifier decides the kind of a capture and whether it may enter the session.
type Classifier interface {
	Classify(e *capture.Entry) classify.Kind
	Admit(e *capture.Entry, kind classify.Kind) error
}

// Parser turns a classified capture into entries.
type Parser interface {
	Parse(e *capture.Entry, kind classify.Kind) ([]*entry.Entry, error)
}

// Normalizer turns an entry into its display form.
type Normalizer interface {
	Normalize(ctx context.Context, e *entry.Entry) normalize.RequestItem
}

// Stats are cumulative pipeline counters.
type Stats struct {
	Received       uint64 `json:"received"`
	Dropped        uint64 `json:"dropped"`
	ParseFallbacks uint64 `json:"parseFallbacks"`
	Appended       uint64 `json:"appended"`
	BodyFailures   uint64 `json:"bodyFailures"`
}

// Pipeline feeds captures into a session store.
type Pipeline struct {
	opts       Options
	classifier Classifier
	parser     Parser
	normalizer Normalizer
	store      *session.Store
	logger     *slog.Logger

	received       atomic.Uint64
	dropped        atomic.Uint64
	parseFallbacks atomic.Uint64
	appended       atomic.Uint64
	bodyFailures   atomic.Uint64
}

// New creates a Pipeline. Nil stages are replaced by defaults; the store is required.
func New(opts Options, c Classifier, p Parser, n Normalizer, store *session.Store, logger *slog.Logger) *Pipeline {
	logger = logging.OrNop(logger)
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if c == nil {
		c = classify.New(classify.Options{})
	}
	if p == nil {
		p = entry.NewParser(logger)
	}
	if n == nil {
		n = normalize.New(normalize.DefaultOptions(), logger)
	}
	return &Pipeline{
		opts:       opts,
		classifier: c,
		parser:     p,
		normalizer: n,
		store:      store,
		logger:     logger,
	}
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:       p.received.Load(),
		Dropped:        p.dropped.Load(),
		ParseFallbacks: p.parseFallbacks.Load(),
		Appended:       p.appended.Load(),
		BodyFailures:   p.bodyFailures.Load(),
	}
}

// Process runs one capture through every stage and appends the resulting
// items to the store. It returns the appended items; a dropped capture
// yields none. Process never panics.
func (p *Pipeline) Process(ctx context.Context, e *capture.Entry) (items []normalize.RequestItem) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("capture processing panicked", "panic", r)
			items = nil
		}
	}()

	entries, ok := p.prepare(e)
	if !ok {
		return nil
	}
	items = p.normalizeAll(ctx, entries)
	p.commit(items)
	return items
}

// prepare classifies, admits and parses a capture. The second result is false
// when the capture is dropped.
func (p *Pipeline) prepare(e *capture.Entry) (entries []*entry.Entry, ok bool) {
	p.received.Add(1)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("capture parsing panicked", "panic", r)
			entries, ok = nil, false
		}
		if !ok {
			p.dropped.Add(1)
			p.opts.Metrics.CaptureProcessed(metrics.ResultDropped)
			return
		}
		p.opts.Metrics.CaptureProcessed(metrics.ResultAdmitted)
	}()

	if e == nil {
		return nil, false
	}

	kind := p.classifier.Classify(e)
	if err := p.classifier.Admit(e, kind); err != nil {
		p.logger.Debug("capture dropped", "method", e.Request.Method, "url", e.Request.URL, "reason", err)
		return nil, false
	}

	entries, err := p.parser.Parse(e, kind)
	if errors.Is(err, entry.ErrNoOperations) {
		p.logger.Warn("GraphQL capture has no valid operations, falling back to HTTP", "url", e.Request.URL, "error", err)
		p.parseFallbacks.Add(1)
		p.opts.Metrics.ParseFallback()
		entries, err = p.parser.Parse(e, classify.KindHTTP)
	}
	if err != nil {
		p.logger.Warn("capture dropped", "url", e.Request.URL, "error", err)
		return nil, false
	}
	return entries, true
}

// normalizeAll normalizes the entries of one capture in order, one at a time.
func (p *Pipeline) normalizeAll(ctx context.Context, entries []*entry.Entry) []normalize.RequestItem {
	items := make([]normalize.RequestItem, 0, len(entries))
	for _, ent := range entries {
		start := time.Now()
		item := p.normalizer.Normalize(ctx, ent)
		p.opts.Metrics.ObserveNormalize(string(item.Category), time.Since(start))
		if item.ResponsePayload == normalize.NoResponse {
			p.bodyFailures.Add(1)
			p.opts.Metrics.BodyFetchFailed()
		}
		items = append(items, item)
	}
	return items
}

func (p *Pipeline) commit(items []normalize.RequestItem) {
	for _, item := range items {
		if err := p.store.Append(item); err != nil {
			p.logger.Warn("item not stored", "entry_id", item.ID, "error", err)
			continue
		}
		p.appended.Add(1)
		p.opts.Metrics.ItemStored(string(item.Category))
	}
}

// Run processes captures from in until it is closed or ctx is done. Up to
// Options.Concurrency captures are normalized at once, but their items reach
// the store in arrival order, so a slow body fetch holds back every later
// capture until it completes or times out. Captures accepted before ctx is
// done are still committed. Run returns ctx.Err() on cancellation and nil
// once in is drained.
func (p *Pipeline) Run(ctx context.Context, in <-chan *capture.Entry) error {
	sem := semaphore.NewWeighted(int64(p.opts.Concurrency))
	pending := make(chan chan []normalize.RequestItem, p.opts.Concurrency)
	committed := make(chan struct{})

	go func() {
		defer close(committed)
		for slot := range pending {
			p.commit(<-slot)
		}
	}()

	err := p.dispatch(ctx, in, sem, pending)
	close(pending)
	<-committed
	return err
}

func (p *Pipeline) dispatch(ctx context.Context, in <-chan *capture.Entry, sem *semaphore.Weighted, pending chan<- chan []normalize.RequestItem) error {
	for {
		var (
			e  *capture.Entry
			ok bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok = <-in:
			if !ok {
				return nil
			}
		}

		entries, admitted := p.prepare(e)
		if !admitted {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}

		slot := make(chan []normalize.RequestItem, 1)
		select {
		case pending <- slot:
		case <-ctx.Done():
			sem.Release(1)
			return ctx.Err()
		}

		go func() {
			defer sem.Release(1)
			var items []normalize.RequestItem
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("capture normalization panicked", "panic", r)
				}
				slot <- items
			}()
			items = p.normalizeAll(ctx, entries)
		}()
	}
}
