// Package metrics provides Prometheus-compatible metrics for netpanel.
//
// The package writes the Prometheus text exposition format
// (text/plain; version=0.0.4) itself. It supports counters, gauges and
// histograms with labels; all of them are safe for concurrent use.
//
// # netpanel metrics
//
// New returns a Set wired for the capture pipeline and the panel API:
//
//   - netpanel_captures_total: captures received (labels: result = admitted, dropped)
//   - netpanel_parse_fallbacks_total: GraphQL captures re-parsed as HTTP
//   - netpanel_items_total: items appended to the session (labels: category)
//   - netpanel_body_fetch_failures_total: items stored as "No response"
//   - netpanel_normalize_duration_seconds: per-entry normalization time (labels: category)
//   - netpanel_session_items: items held by the session, sampled on scrape
//   - netpanel_stream_clients: connected event stream clients
//   - netpanel_api_requests_total: panel API requests (labels: method, route, status)
//   - netpanel_api_request_duration_seconds: panel API latency (labels: method, route)
//
// Go runtime gauges (go_goroutines, go_memstats_*, go_gc_*) are sampled on scrape.
//
// # Usage
//
//	m := metrics.New()
//	m.TrackSessionSize(store.Len)
//	p := pipeline.New(pipeline.Options{Metrics: m}, nil, nil, nil, store, logger)
//	http.Handle("/metrics", m.Handler())
//
// Custom metrics can also be created:
//
//	registry := metrics.NewRegistry()
//	counter := registry.NewCounter("my_counter", "Description of counter", "label1", "label2")
//	vec, _ := counter.WithLabels("value1", "value2")
//	_ = vec.Inc()
package metrics
