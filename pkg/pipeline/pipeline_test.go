package pipeline

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/netpanel/pkg/capture"
	"github.com/getmockd/netpanel/pkg/classify"
	"github.com/getmockd/netpanel/pkg/entry"
	"github.com/getmockd/netpanel/pkg/metrics"
	"github.com/getmockd/netpanel/pkg/normalize"
	"github.com/getmockd/netpanel/pkg/session"
)

func newCapture(method, url, mimeType, post string, body capture.BodyFetcher) *capture.Entry {
	e := &capture.Entry{
		StartedDateTime: time.Date(2024, 2, 19, 17, 18, 41, 0, time.UTC),
		Time:            12.5,
		Request:         capture.Request{Method: method, URL: url},
		Response: capture.Response{
			Status:     200,
			StatusText: "OK",
			Content:    capture.Content{MimeType: mimeType},
		},
		Body: body,
	}
	if post != "" {
		e.Request.PostData = &capture.PostData{MimeType: "application/json", Text: post}
	}
	return e
}

func newPipeline(t *testing.T, opts Options, n Normalizer) (*Pipeline, *session.Store) {
	t.Helper()
	store := session.New(nil)
	t.Cleanup(store.Close)
	return New(opts, nil, nil, n, store, nil), store
}

func names(items []normalize.RequestItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestProcess_HTTP(t *testing.T) {
	t.Parallel()

	p, store := newPipeline(t, Options{}, nil)
	items := p.Process(context.Background(),
		newCapture("GET", "http://localhost:3000/user?title=Test1", "application/json", "", capture.StaticBody(`{"test":12}`, false)))

	require.Len(t, items, 1)
	assert.Equal(t, normalize.CategoryJSON, items[0].Category)
	assert.Equal(t, "http://localhost:3000", items[0].RequestDomain)
	assert.JSONEq(t, `[{"name":"title","value":"Test1"}]`, items[0].RequestQueryString)
	assert.Equal(t, items, store.Items())
	assert.Equal(t, Stats{Received: 1, Appended: 1}, p.Stats())
}

func TestProcess_RecordsMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	p, _ := newPipeline(t, Options{Metrics: m}, nil)
	p.Process(context.Background(),
		newCapture("GET", "http://localhost:3000/user", "application/json", "", capture.StaticBody(`{}`, false)))
	p.Process(context.Background(),
		newCapture("GET", "http://localhost:3000/broken", "application/json", "", capture.StaticBody("", false)))
	p.Process(context.Background(),
		newCapture("OPTIONS", "http://localhost:3000/graphql", "", "", nil))

	var buf bytes.Buffer
	require.NoError(t, m.Registry().WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, `netpanel_captures_total{result="admitted"} 2`)
	assert.Contains(t, out, `netpanel_captures_total{result="dropped"} 1`)
	assert.Contains(t, out, `netpanel_items_total{category="JSON"} 2`)
	assert.Contains(t, out, `netpanel_body_fetch_failures_total 1`)
	assert.Contains(t, out, `netpanel_normalize_duration_seconds_count{category="JSON"} 2`)
}

func TestProcess_PreflightNeverStored(t *testing.T) {
	t.Parallel()

	p, store := newPipeline(t, Options{}, nil)
	for _, method := range []string{"OPTIONS", "options"} {
		items := p.Process(context.Background(),
			newCapture(method, "http://localhost:3000/graphql", "", `{"query":"{ a }"}`, nil))
		assert.Empty(t, items)
	}
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, uint64(2), p.Stats().Dropped)
}

func TestProcess_MIMEDropPolicy(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	defer store.Close()
	c := classify.New(classify.Options{MIMEPolicy: classify.MIMEDrop})
	p := New(Options{}, c, nil, nil, store, nil)

	p.Process(context.Background(), newCapture("GET", "http://x/app.wasm", "application/wasm", "", capture.StaticBody("AGFzbQ==", true)))
	p.Process(context.Background(), newCapture("GET", "http://x/a.json", "application/json", "", capture.StaticBody("{}", false)))

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "a.json", items[0].Name)
}

func TestProcess_GraphQLBatch(t *testing.T) {
	t.Parallel()

	p, store := newPipeline(t, Options{}, nil)
	batch := `[
		{"operationName":"BookQuery","query":"query BookQuery($id: ID!) { book(id: $id) { id } }","variables":{"id":"1"}},
		{"operationName":"Bad"},
		{"query":"mutation AddBook { addBook { id } }"},
		{"query":"{ me { id } }"}
	]`
	items := p.Process(context.Background(),
		newCapture("POST", "http://localhost:3000/graphql", "application/json", batch, capture.StaticBody(`[{"data":{}}]`, false)))

	require.Len(t, items, 3)
	assert.Equal(t, []string{"query BookQuery", "mutation AddBook", "query"}, names(items))
	for _, it := range items {
		assert.Equal(t, normalize.CategoryGQL, it.Category)
		assert.NotEmpty(t, it.RequestGQLQuery)
		assert.Empty(t, it.RequestQueryString)
		assert.Empty(t, it.RequestPostData)
	}
	assert.JSONEq(t, `{"id":"1"}`, items[0].RequestGQLVariables)
	assert.Equal(t, names(items), names(store.Items()))

	seen := map[string]bool{}
	for _, it := range items {
		assert.False(t, seen[it.ID], "ids are unique")
		seen[it.ID] = true
	}
}

// graphQLEverything classifies every capture as GraphQL.
type graphQLEverything struct{}

func (graphQLEverything) Classify(*capture.Entry) classify.Kind { return classify.KindGraphQL }
func (graphQLEverything) Admit(*capture.Entry, classify.Kind) error { return nil }

func TestProcess_FallsBackToHTTP(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	defer store.Close()
	p := New(Options{}, graphQLEverything{}, nil, nil, store, nil)

	items := p.Process(context.Background(),
		newCapture("POST", "http://localhost:3000/graphql", "application/json", `[{"operationName":"A"},{"query":7}]`, capture.StaticBody("{}", false)))

	require.Len(t, items, 1)
	assert.Equal(t, normalize.CategoryJSON, items[0].Category)
	assert.Equal(t, "graphql", items[0].Name)
	assert.NotEmpty(t, items[0].RequestPostData)
	assert.Equal(t, uint64(1), p.Stats().ParseFallbacks)
}

func TestProcess_BodyFailureStillStored(t *testing.T) {
	t.Parallel()

	p, store := newPipeline(t, Options{}, nil)
	p.Process(context.Background(), newCapture("GET", "http://x/a", "application/json", "", nil))

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, normalize.NoResponse, items[0].ResponsePayload)
	assert.Equal(t, uint64(1), p.Stats().BodyFailures)
}

func TestProcess_Nil(t *testing.T) {
	t.Parallel()

	p, store := newPipeline(t, Options{}, nil)
	assert.Empty(t, p.Process(context.Background(), nil))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, Stats{Received: 1, Dropped: 1}, p.Stats())
}

type panickingNormalizer struct{}

func (panickingNormalizer) Normalize(context.Context, *entry.Entry) normalize.RequestItem {
	panic("boom")
}

func TestProcess_RecoversPanics(t *testing.T) {
	t.Parallel()

	p, store := newPipeline(t, Options{}, panickingNormalizer{})
	assert.NotPanics(t, func() {
		assert.Empty(t, p.Process(context.Background(), newCapture("GET", "http://x/a", "text/plain", "", nil)))
	})
	assert.Equal(t, 0, store.Len())
}

func feed(captures ...*capture.Entry) <-chan *capture.Entry {
	ch := make(chan *capture.Entry, len(captures))
	for _, c := range captures {
		ch <- c
	}
	close(ch)
	return ch
}

// delayed returns a body that resolves after d.
func delayed(d time.Duration, text string) capture.BodyFetcher {
	return capture.BodyFunc(func(ctx context.Context) (capture.Body, error) {
		select {
		case <-time.After(d):
			return capture.Body{Text: text}, nil
		case <-ctx.Done():
			return capture.Body{}, ctx.Err()
		}
	})
}

func TestRun_CommitsInArrivalOrder(t *testing.T) {
	t.Parallel()

	p, store := newPipeline(t, Options{Concurrency: 4}, nil)
	in := feed(
		newCapture("GET", "http://x/1", "text/plain", "", delayed(80*time.Millisecond, "1")),
		newCapture("GET", "http://x/2", "text/plain", "", delayed(40*time.Millisecond, "2")),
		newCapture("OPTIONS", "http://x/skip", "", "", nil),
		newCapture("GET", "http://x/3", "text/plain", "", delayed(0, "3")),
		newCapture("GET", "http://x/4", "text/plain", "", delayed(20*time.Millisecond, "4")),
	)

	require.NoError(t, p.Run(context.Background(), in))

	items := store.Items()
	assert.Equal(t, []string{"1", "2", "3", "4"}, names(items))
	for i, it := range items {
		assert.Equal(t, names(items)[i], it.ResponsePayload)
	}
	stats := p.Stats()
	assert.Equal(t, uint64(5), stats.Received)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, uint64(4), stats.Appended)
}

func TestRun_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	body := capture.BodyFunc(func(ctx context.Context) (capture.Body, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return capture.Body{Text: "ok"}, nil
	})

	p, store := newPipeline(t, Options{Concurrency: 2}, nil)
	captures := make([]*capture.Entry, 10)
	for i := range captures {
		captures[i] = newCapture("GET", "http://x/a", "text/plain", "", body)
	}

	require.NoError(t, p.Run(context.Background(), feed(captures...)))
	assert.Equal(t, 10, store.Len())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_HungFetchHoldsBackLaterCommits(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	hung := capture.BodyFunc(func(ctx context.Context) (capture.Body, error) {
		<-release
		return capture.Body{Text: "late"}, nil
	})

	store := session.New(nil)
	defer store.Close()
	n := normalize.New(normalize.Options{FetchTimeout: 0}, nil)
	p := New(Options{Concurrency: 2}, nil, nil, n, store, nil)

	in := make(chan *capture.Entry, 2)
	in <- newCapture("GET", "http://x/first", "text/plain", "", hung)
	in <- newCapture("GET", "http://x/second", "text/plain", "", capture.StaticBody("fast", false))
	close(in)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), in) }()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.Len(), "the second capture waits for the first")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"first", "second"}, names(store.Items()))
	assert.Equal(t, "late", store.Items()[0].ResponsePayload)
}

func TestRun_FetchTimeoutUnblocksCommits(t *testing.T) {
	t.Parallel()

	hung := capture.BodyFunc(func(ctx context.Context) (capture.Body, error) {
		<-ctx.Done()
		return capture.Body{}, ctx.Err()
	})

	store := session.New(nil)
	defer store.Close()
	n := normalize.New(normalize.Options{FetchTimeout: 30 * time.Millisecond}, nil)
	p := New(Options{}, nil, nil, n, store, nil)

	require.NoError(t, p.Run(context.Background(), feed(
		newCapture("GET", "http://x/first", "text/plain", "", hung),
		newCapture("GET", "http://x/second", "text/plain", "", capture.StaticBody("fast", false)),
	)))

	items := store.Items()
	require.Len(t, items, 2)
	assert.Equal(t, normalize.NoResponse, items[0].ResponsePayload)
	assert.Equal(t, "fast", items[1].ResponsePayload)
}

func TestRun_Cancel(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t, Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan *capture.Entry)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, in) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
