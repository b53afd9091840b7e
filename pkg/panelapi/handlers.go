package panelapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/getmockd/netpanel/pkg/normalize"
	"github.com/getmockd/netpanel/pkg/session"
	"github.com/getmockd/netpanel/pkg/view"
)

// FilterAll selects every category in a settings update.
const FilterAll = "All"

// EntriesResponse is the body of GET /api/entries.
type EntriesResponse struct {
	Entries []normalize.RequestItem `json:"entries"`
	Count   int                     `json:"count"`
	Total   int                     `json:"total"`
}

// SettingsUpdate is the body of PUT /api/settings.
type SettingsUpdate struct {
	Filter string `json:"filter"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListEntries handles GET /api/entries.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	items := s.store.Items()
	settings := s.store.Settings()
	if r.URL.Query().Get("all") == "1" {
		settings = session.Settings{}
	}

	visible, err := view.Where(view.Visible(items, settings), r.URL.Query().Get("where"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_where", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, EntriesResponse{Entries: visible, Count: len(visible), Total: len(items)})
}

// handleGetEntry handles GET /api/entries/{id}.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "entry not found: "+id)
		return
	}

	if expr := r.URL.Query().Get("jsonpath"); expr != "" {
		payload, err := view.JSONPath(item.ResponsePayload, expr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_jsonpath", err.Error())
			return
		}
		item.ResponsePayload = payload
	}
	writeJSON(w, http.StatusOK, item)
}

// handleClearEntries handles DELETE /api/entries.
func (s *Server) handleClearEntries(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "session_closed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetSettings handles GET /api/settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Settings())
}

// handlePutSettings handles PUT /api/settings.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body: "+err.Error())
		return
	}

	var err error
	if strings.EqualFold(req.Filter, FilterAll) {
		err = s.store.SelectAll()
	} else {
		c, ok := normalize.ParseCategory(req.Filter)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_filter", "unknown filter: "+req.Filter)
			return
		}
		err = s.store.Select(c)
	}
	if errors.Is(err, session.ErrClosed) {
		writeError(w, http.StatusServiceUnavailable, "session_closed", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.Settings())
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Stats == nil {
		writeError(w, http.StatusNotFound, "no_pipeline", "no pipeline attached")
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Stats())
}
