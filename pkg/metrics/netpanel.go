package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// Capture results.
const (
	ResultAdmitted = "admitted"
	ResultDropped  = "dropped"
)

// Set is the netpanel metric set over its own Registry. Every method is safe
// on a nil *Set and then records nothing.
type Set struct {
	registry *Registry

	captures          *Counter
	parseFallbacks    *Counter
	items             *Counter
	bodyFailures      *Counter
	normalizeDuration *Histogram
	sessionItems      *Gauge
	streamClients     *Gauge
	apiRequests       *Counter
	apiDuration       *Histogram
}

// New creates a Set with the netpanel metrics and the Go runtime collector.
func New() *Set {
	r := NewRegistry()
	s := &Set{
		registry: r,
		captures: r.NewCounter(
			"netpanel_captures_total",
			"Captures received by the pipeline, by admission result",
			"result",
		),
		parseFallbacks: r.NewCounter(
			"netpanel_parse_fallbacks_total",
			"GraphQL captures re-parsed as HTTP because no operation was valid",
		),
		items: r.NewCounter(
			"netpanel_items_total",
			"Items appended to the session, by category",
			"category",
		),
		bodyFailures: r.NewCounter(
			"netpanel_body_fetch_failures_total",
			"Items stored without a response body",
		),
		normalizeDuration: r.NewHistogram(
			"netpanel_normalize_duration_seconds",
			"Time to normalize one entry, including the body fetch",
			DurationBuckets,
			"category",
		),
		sessionItems: r.NewGauge(
			"netpanel_session_items",
			"Items currently held by the session",
		),
		streamClients: r.NewGauge(
			"netpanel_stream_clients",
			"Connected event stream clients",
		),
		apiRequests: r.NewCounter(
			"netpanel_api_requests_total",
			"Panel API requests",
			"method", "route", "status",
		),
		apiDuration: r.NewHistogram(
			"netpanel_api_request_duration_seconds",
			"Panel API request duration in seconds",
			DurationBuckets,
			"method", "route",
		),
	}
	_ = s.streamClients.Set(0)

	rc := NewRuntimeCollector(r)
	r.OnScrape(rc.Collect)
	return s
}

// Registry returns the underlying registry.
func (s *Set) Registry() *Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

// Handler serves the metrics in the Prometheus text format.
func (s *Set) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return s.registry.Handler()
}

// CaptureProcessed counts a capture with its admission result.
func (s *Set) CaptureProcessed(result string) {
	if s == nil {
		return
	}
	if vec, err := s.captures.WithLabels(result); err == nil {
		_ = vec.Inc()
	}
}

// ParseFallback counts a GraphQL capture re-parsed as HTTP.
func (s *Set) ParseFallback() {
	if s == nil {
		return
	}
	_ = s.parseFallbacks.Inc()
}

// ItemStored counts an item appended to the session.
func (s *Set) ItemStored(category string) {
	if s == nil {
		return
	}
	if vec, err := s.items.WithLabels(category); err == nil {
		_ = vec.Inc()
	}
}

// BodyFetchFailed counts an item stored without its response body.
func (s *Set) BodyFetchFailed() {
	if s == nil {
		return
	}
	_ = s.bodyFailures.Inc()
}

// ObserveNormalize records how long one entry took to normalize.
func (s *Set) ObserveNormalize(category string, d time.Duration) {
	if s == nil {
		return
	}
	if vec, err := s.normalizeDuration.WithLabels(category); err == nil {
		vec.Observe(d.Seconds())
	}
}

// TrackSessionSize samples size into netpanel_session_items on every scrape.
func (s *Set) TrackSessionSize(size func() int) {
	if s == nil || size == nil {
		return
	}
	s.registry.OnScrape(func() { _ = s.sessionItems.Set(float64(size())) })
}

// StreamClientConnected increments the stream client gauge.
func (s *Set) StreamClientConnected() {
	if s == nil {
		return
	}
	_ = s.streamClients.Add(1)
}

// StreamClientDisconnected decrements the stream client gauge.
func (s *Set) StreamClientDisconnected() {
	if s == nil {
		return
	}
	_ = s.streamClients.Add(-1)
}

// ObserveAPIRequest records a panel API request. Route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (s *Set) ObserveAPIRequest(method, route string, status int, d time.Duration) {
	if s == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	if vec, err := s.apiRequests.WithLabels(method, route, strconv.Itoa(status)); err == nil {
		_ = vec.Inc()
	}
	if vec, err := s.apiDuration.WithLabels(method, route); err == nil {
		vec.Observe(d.Seconds())
	}
}
