package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
	"git.home.luguber.info/inful/pagesmith/internal/source"
)

func (s *Server) pagesMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s.mchain(http.HandlerFunc(s.handlePage)))
	return mux
}

// handlePage serves a page through the coordinator. Reads never wait on
// background regeneration; a stale page is served as-is while a replacement
// is produced behind the scenes.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := artifact.NewKey(r.URL.Path, r.URL.Query())
	horizon := s.cfg.Pages.DefaultRevalidate()

	art, state, err := s.opts.Coordinator.Get(r.Context(), key, horizon, s.opts.Renderer.GenerateFor(key))
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	etag := fmt.Sprintf("%q", art.Revision)
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", cacheControl(art))
	w.Header().Set("X-Page-State", string(state))

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(art.Content)
}

// cacheControl derives the downstream caching policy from the artifact's own
// horizon, so per-page overrides are reflected in the response headers.
func cacheControl(art *artifact.Artifact) string {
	if art.Horizon <= 0 {
		return "no-cache"
	}
	maxAge := int(art.Horizon.Seconds())
	return fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, maxAge)
}
