// Package panelapi serves a session over HTTP for panel front ends.
//
// Routes:
//
//	GET    /api/entries          visible items, newest first (?all=1, ?where=expr)
//	GET    /api/entries/{id}     one item (?jsonpath=expr projects the payload)
//	DELETE /api/entries          clear the session
//	GET    /api/settings         filter settings
//	PUT    /api/settings         {"filter":"GQL"} or {"filter":"All"}
//	GET    /api/stats            pipeline counters
//	GET    /api/stream           WebSocket stream of session events
//	GET    /healthz              liveness
//	GET    /metrics              Prometheus metrics, when Options.Metrics is set
package panelapi
