package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
)

func (s *Server) adminMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/api/status", s.mchain(http.HandlerFunc(s.handleStatus)))
	mux.Handle("/api/revalidate", s.mchain(http.HandlerFunc(s.handleRevalidate)))
	mux.Handle("/api/pages/state", s.mchain(http.HandlerFunc(s.handlePageState)))
	if s.opts.Registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.opts.Registry))
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`
	RequestsTotal  int64   `json:"requests_total"`
	Pages          int     `json:"pages"`
	RegenQueue     int     `json:"regen_queue"`
	RegenActive    int     `json:"regen_active"`
	SourceWatching bool    `json:"source_watching"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	keys, err := s.opts.Store.Keys(r.Context())
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		UptimeSeconds:  time.Since(s.startTime).Seconds(),
		RequestsTotal:  s.requests.Load(),
		Pages:          len(keys),
		RegenQueue:     s.opts.Pool.QueueLength(),
		RegenActive:    s.opts.Pool.ActiveCount(),
		SourceWatching: s.cfg.Content.Watch,
	})
}

// handleRevalidate forces a key stale and, when a stored artifact exists,
// kicks off a background regeneration immediately. The stored artifact keeps
// serving until the replacement lands.
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "missing path parameter", http.StatusBadRequest)
		return
	}

	key := artifact.NewKey(path, nil)
	s.opts.Coordinator.Invalidate(key, "admin")

	started, err := s.opts.Coordinator.Refresh(r.Context(), key, s.cfg.Pages.DefaultRevalidate(), s.opts.Renderer.GenerateFor(key))
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	slog.Info("Revalidation requested", "page", string(key), "regenerating", started)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"path":         string(key),
		"invalidated":  true,
		"regenerating": started,
	})
}

func (s *Server) handlePageState(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "missing path parameter", http.StatusBadRequest)
		return
	}

	key := artifact.NewKey(path, nil)
	state, err := s.opts.Coordinator.State(r.Context(), key)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"path":  string(key),
		"state": string(state),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
