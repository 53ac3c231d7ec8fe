// Package httpserver manages the pages and admin HTTP endpoints.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/coordinator"
	pserrors "git.home.luguber.info/inful/pagesmith/internal/errors"
	"git.home.luguber.info/inful/pagesmith/internal/regen"
	"git.home.luguber.info/inful/pagesmith/internal/render"
	"git.home.luguber.info/inful/pagesmith/internal/store"
)

// Options carries the collaborators the servers expose.
type Options struct {
	Coordinator *coordinator.Coordinator
	Renderer    *render.Renderer
	Store       store.Store
	Pool        *regen.Pool
	// Registry serves /metrics when set.
	Registry *prom.Registry
}

// Server manages the pages and admin HTTP servers.
type Server struct {
	pagesServer *http.Server
	adminServer *http.Server
	cfg         *config.Config
	opts        Options

	errorAdapter *pserrors.HTTPErrorAdapter
	startTime    time.Time
	requests     atomic.Int64

	// middleware chain
	mchain func(http.Handler) http.Handler
}

// New constructs a new HTTP server wiring instance.
func New(cfg *config.Config, opts Options) *Server {
	s := &Server{
		cfg:          cfg,
		opts:         opts,
		errorAdapter: pserrors.NewHTTPErrorAdapter(slog.Default()),
		startTime:    time.Now(),
	}
	s.mchain = chain(slog.Default(), &s.requests)
	return s
}

// Start pre-binds all required ports so startup fails fast with aggregate
// errors instead of logging independent 'address already in use' lines after
// partial initialization, then launches both servers.
func (s *Server) Start(ctx context.Context) error {
	type preBind struct {
		name string
		port int
		ln   net.Listener
	}
	binds := []preBind{
		{name: "pages", port: s.cfg.Server.PagesPort},
		{name: "admin", port: s.cfg.Server.AdminPort},
	}

	var bindErrs []error
	lc := net.ListenConfig{}
	for i := range binds {
		addr := fmt.Sprintf(":%d", binds[i].port)
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			bindErrs = append(bindErrs, fmt.Errorf("%s port %d: %w", binds[i].name, binds[i].port, err))
			continue
		}
		binds[i].ln = ln
	}
	if len(bindErrs) > 0 {
		for _, b := range binds {
			if b.ln != nil {
				_ = b.ln.Close()
			}
		}
		return fmt.Errorf("http startup failed: %w", errors.Join(bindErrs...))
	}

	s.pagesServer = &http.Server{
		Handler:      s.pagesMux(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.adminServer = &http.Server{
		Handler:      s.adminMux(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.serveOn("pages", s.pagesServer, binds[0].ln)
	s.serveOn("admin", s.adminServer, binds[1].ln)

	slog.Info("HTTP servers started",
		slog.Int("pages_port", s.cfg.Server.PagesPort),
		slog.Int("admin_port", s.cfg.Server.AdminPort))
	return nil
}

// Stop gracefully shuts down both HTTP servers.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error

	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin server shutdown: %w", err))
		}
	}
	if s.pagesServer != nil {
		if err := s.pagesServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("pages server shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	slog.Info("HTTP servers stopped")
	return nil
}

// serveOn launches an http.Server on a pre-bound listener.
func (s *Server) serveOn(kind string, srv *http.Server, ln net.Listener) {
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s server error", kind), "error", err)
		}
	}()
}

// RequestsTotal reports HTTP requests handled since start, for status reporting.
func (s *Server) RequestsTotal() int64 { return s.requests.Load() }
