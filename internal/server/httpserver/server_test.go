package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/coordinator"
	"git.home.luguber.info/inful/pagesmith/internal/regen"
	"git.home.luguber.info/inful/pagesmith/internal/render"
	"git.home.luguber.info/inful/pagesmith/internal/source"
	"git.home.luguber.info/inful/pagesmith/internal/store"
)

type serverFixture struct {
	server *Server
	store  *store.MemoryStore
	pool   *regen.Pool
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.md"), []byte("---\ntitle: Home\n---\n# Welcome\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "guides"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guides", "intro.md"), []byte("# Intro\n"), 0o644))

	src, err := source.NewFSSource(dir)
	require.NoError(t, err)
	renderer, err := render.NewRenderer(src, "Test Site")
	require.NoError(t, err)

	st := store.NewMemoryStore()
	pool := regen.NewPool(16, 2)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	coord := coordinator.New(st, pool, coordinator.Options{})

	cfg := &config.Config{}
	cfg.Server.PagesPort = 18080
	cfg.Server.AdminPort = 18081
	cfg.Pages.DefaultRevalidateSeconds = 60

	srv := New(cfg, Options{
		Coordinator: coord,
		Renderer:    renderer,
		Store:       st,
		Pool:        pool,
	})
	return &serverFixture{server: srv, store: st, pool: pool}
}

func TestHandlePage_GeneratesAndServes(t *testing.T) {
	f := newServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.pagesMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.Equal(t, "public, max-age=60, stale-while-revalidate=60", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "Welcome")
}

func TestHandlePage_NotFound(t *testing.T) {
	f := newServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.pagesMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePage_MethodNotAllowed(t *testing.T) {
	f := newServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.pagesMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestHandlePage_ETagRoundTrip(t *testing.T) {
	f := newServerFixture(t)
	mux := f.server.pagesMux()

	first := httptest.NewRecorder()
	mux.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/guides/intro", nil))
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/guides/intro", nil)
	req.Header.Set("If-None-Match", etag)
	second := httptest.NewRecorder()
	mux.ServeHTTP(second, req)

	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())
}

func TestHandlePage_HeadOmitsBody(t *testing.T) {
	f := newServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.pagesMux().ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("ETag"))
}

func TestHandleHealth(t *testing.T) {
	f := newServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.adminMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleStatus_CountsPages(t *testing.T) {
	f := newServerFixture(t)

	// Generate one page so the store is non-empty.
	pages := f.server.pagesMux()
	pages.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	f.server.adminMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Pages)
	assert.GreaterOrEqual(t, status.RequestsTotal, int64(1))
}

func TestHandleRevalidate_TriggersRegeneration(t *testing.T) {
	f := newServerFixture(t)
	pages := f.server.pagesMux()
	admin := f.server.adminMux()

	pages.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/revalidate?path=/", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["invalidated"])
	assert.Equal(t, true, body["regenerating"])
}

func TestHandleRevalidate_RequiresPOSTAndPath(t *testing.T) {
	f := newServerFixture(t)
	admin := f.server.adminMux()

	rec := httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/revalidate?path=/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/revalidate", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePageState(t *testing.T) {
	f := newServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.adminMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pages/state?path=/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(artifact.StateAbsent), body["state"])

	f.server.pagesMux().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec = httptest.NewRecorder()
	f.server.adminMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pages/state?path=/", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(artifact.StateFresh), body["state"])
}

func TestStartAndStop_BindsBothPorts(t *testing.T) {
	f := newServerFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.server.Start(ctx))
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		require.NoError(t, f.server.Stop(stopCtx))
	}()

	resp, err := http.Get("http://127.0.0.1:18081/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
