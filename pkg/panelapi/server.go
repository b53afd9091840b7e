package panelapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/getmockd/netpanel/pkg/logging"
	"github.com/getmockd/netpanel/pkg/metrics"
	"github.com/getmockd/netpanel/pkg/pipeline"
	"github.com/getmockd/netpanel/pkg/session"
)

// Options configures a Server.
type Options struct {
	// Stats reports pipeline counters for /api/stats. Optional.
	Stats func() pipeline.Stats

	// Metrics is served at /metrics and records API requests. Optional.
	Metrics *metrics.Set

	// OriginPatterns are the cross-origin hosts allowed to open the stream,
	// e.g. "localhost:*". Same-origin requests are always allowed.
	OriginPatterns []string
}

// Server exposes a session store over HTTP.
type Server struct {
	store  *session.Store
	opts   Options
	logger *slog.Logger
	router chi.Router
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// New creates a Server over store. A nil logger discards output.
func New(store *session.Store, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		store:  store,
		opts:   opts,
		logger: logging.OrNop(logger),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/entries", s.handleListEntries)
		r.Delete("/entries", s.handleClearEntries)
		r.Get("/entries/{id}", s.handleGetEntry)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Get("/stats", s.handleStats)
		r.Get("/stream", s.handleStream)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		s.opts.Metrics.ObserveAPIRequest(r.Method, route, ww.Status(), time.Since(start))
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{Error: errCode, Message: message})
}
