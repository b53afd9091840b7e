package panelapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/netpanel/pkg/metrics"
	"github.com/getmockd/netpanel/pkg/normalize"
	"github.com/getmockd/netpanel/pkg/pipeline"
	"github.com/getmockd/netpanel/pkg/session"
)

var t0 = time.Date(2024, 2, 19, 17, 18, 41, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *session.Store) {
	t.Helper()
	store := session.New(nil)
	t.Cleanup(store.Close)

	items := []normalize.RequestItem{
		{ID: "a", Timestamp: t0, Category: normalize.CategoryJSON, ResponseStatusCode: 200,
			ResponsePayload: "{\n  \"user\": {\n    \"name\": \"Ada\"\n  }\n}"},
		{ID: "b", Timestamp: t0.Add(time.Second), Category: normalize.CategoryGQL, ResponseStatusCode: 200},
		{ID: "c", Timestamp: t0.Add(2 * time.Second), Category: normalize.CategoryJSON, ResponseStatusCode: 500},
	}
	for _, it := range items {
		require.NoError(t, store.Append(it))
	}

	stats := func() pipeline.Stats { return pipeline.Stats{Received: 4, Dropped: 1, Appended: 3} }
	return New(store, Options{Stats: stats}, nil), store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func entryIDs(resp EntriesResponse) []string {
	out := make([]string, len(resp.Entries))
	for i, e := range resp.Entries {
		out[i] = e.ID
	}
	return out
}

func TestListEntries(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/entries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode[EntriesResponse](t, rec)
	assert.Equal(t, []string{"c", "b", "a"}, entryIDs(resp))
	assert.Equal(t, 3, resp.Total)

	require.NoError(t, store.Select(normalize.CategoryJSON))
	resp = decode[EntriesResponse](t, do(t, srv, http.MethodGet, "/api/entries", ""))
	assert.Equal(t, []string{"c", "a"}, entryIDs(resp))
	assert.Equal(t, 2, resp.Count)

	resp = decode[EntriesResponse](t, do(t, srv, http.MethodGet, "/api/entries?all=1", ""))
	assert.Equal(t, []string{"c", "b", "a"}, entryIDs(resp))
}

func TestListEntries_Where(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/entries?where="+url.QueryEscape("responseStatusCode >= 400"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"c"}, entryIDs(decode[EntriesResponse](t, rec)))

	rec = do(t, srv, http.MethodGet, "/api/entries?where="+url.QueryEscape("responseStatusCode >="), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_where", decode[ErrorResponse](t, rec).Error)
}

func TestGetEntry(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/entries/a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	item := decode[normalize.RequestItem](t, rec)
	assert.Equal(t, "a", item.ID)
	assert.Contains(t, item.ResponsePayload, "Ada")

	rec = do(t, srv, http.MethodGet, "/api/entries/a?jsonpath="+url.QueryEscape("$.user.name"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["Ada"]`, decode[normalize.RequestItem](t, rec).ResponsePayload)

	rec = do(t, srv, http.MethodGet, "/api/entries/b?jsonpath="+url.QueryEscape("$.x"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/entries/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Error)
}

func TestClearEntries(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)

	rec := do(t, srv, http.MethodDelete, "/api/entries", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, store.Len())

	store.Close()
	rec = do(t, srv, http.MethodDelete, "/api/entries", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSettings(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)

	rec := do(t, srv, http.MethodPut, "/api/settings", `{"filter":"gql"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[session.Settings](t, rec)
	assert.True(t, st.Filters[normalize.CategoryGQL])

	selected, ok := store.Settings().Selected()
	require.True(t, ok)
	assert.Equal(t, normalize.CategoryGQL, selected)

	st = decode[session.Settings](t, do(t, srv, http.MethodGet, "/api/settings", ""))
	assert.True(t, st.Filters[normalize.CategoryGQL])

	rec = do(t, srv, http.MethodPut, "/api/settings", `{"filter":"All"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok = store.Settings().Selected()
	assert.False(t, ok)

	rec = do(t, srv, http.MethodPut, "/api/settings", `{"filter":"HTML"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_filter", decode[ErrorResponse](t, rec).Error)

	rec = do(t, srv, http.MethodPut, "/api/settings", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decode[ErrorResponse](t, rec).Error)
}

func TestStatsAndHealth(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.Stats{Received: 4, Dropped: 1, Appended: 3}, decode[pipeline.Stats](t, rec))

	rec = do(t, New(store, Options{}, nil), http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	t.Cleanup(store.Close)
	m := metrics.New()
	m.TrackSessionSize(store.Len)
	require.NoError(t, store.Append(normalize.RequestItem{ID: "a", Timestamp: t0}))
	srv := New(store, Options{Metrics: m}, nil)

	do(t, srv, http.MethodGet, "/api/entries/a", "")
	do(t, srv, http.MethodGet, "/api/entries/missing", "")
	do(t, srv, http.MethodGet, "/nope", "")

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `netpanel_api_requests_total{method="GET",route="/api/entries/{id}",status="200"} 1`)
	assert.Contains(t, body, `netpanel_api_requests_total{method="GET",route="/api/entries/{id}",status="404"} 1`)
	assert.Contains(t, body, `netpanel_api_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, body, "netpanel_session_items 1")

	rec = do(t, New(store, Options{}, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStream(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/stream", nil)
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	var hello Connected
	require.NoError(t, wsjson.Read(ctx, conn, &hello))
	assert.Equal(t, Connected{Type: "connected", Count: 3}, hello)

	require.NoError(t, store.Append(normalize.RequestItem{ID: "d", Category: normalize.CategoryIMG}))
	require.NoError(t, store.Select(normalize.CategoryIMG))
	require.NoError(t, store.Clear())

	var ev session.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, session.EventAppended, ev.Type)
	require.NotNil(t, ev.Item)
	assert.Equal(t, "d", ev.Item.ID)

	ev = session.Event{}
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, session.EventSettings, ev.Type)

	ev = session.Event{}
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, session.EventCleared, ev.Type)

	store.Close()
	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
