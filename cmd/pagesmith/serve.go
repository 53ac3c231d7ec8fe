package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/coordinator"
	"git.home.luguber.info/inful/pagesmith/internal/events"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
	"git.home.luguber.info/inful/pagesmith/internal/regen"
	"git.home.luguber.info/inful/pagesmith/internal/render"
	"git.home.luguber.info/inful/pagesmith/internal/server/httpserver"
	"git.home.luguber.info/inful/pagesmith/internal/source"
	"git.home.luguber.info/inful/pagesmith/internal/store"
	"git.home.luguber.info/inful/pagesmith/internal/sweep"
	"git.home.luguber.info/inful/pagesmith/internal/watch"
)

func runServe(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close artifact store", "error", err)
		}
	}()

	src, watchRoot, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}

	renderer, err := render.NewRenderer(src, cfg.Site.Title)
	if err != nil {
		return err
	}

	registry := prom.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(registry)

	var sink events.Sink
	if cfg.Events.Enabled {
		publisher, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			return fmt.Errorf("event publisher: %w", err)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				slog.Warn("Failed to close event publisher", "error", err)
			}
		}()
		sink = publisher
	}

	pool := regen.NewPool(cfg.Regen.QueueSize, cfg.Regen.Workers)
	pool.Start(ctx)
	defer pool.Stop()

	coord := coordinator.New(st, pool, coordinator.Options{
		Metrics:      recorder,
		Events:       sink,
		RegenTimeout: cfg.Regen.RegenTimeout(),
	})
	horizon := cfg.Pages.DefaultRevalidate()

	// A content change marks the page stale and, if it has a stored artifact,
	// starts regenerating right away instead of waiting for the next request.
	if cfg.Content.Watch {
		watcher, err := watch.New(watchRoot, cfg.Content.WatchDebounce(), func(key artifact.Key) {
			coord.Invalidate(key, "watch")
			if _, err := coord.Refresh(ctx, key, horizon, renderer.GenerateFor(key)); err != nil {
				slog.Warn("Failed to refresh changed page", "page", string(key), "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("content watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("content watcher: %w", err)
		}
		defer func() {
			if err := watcher.Stop(); err != nil {
				slog.Warn("Failed to stop content watcher", "error", err)
			}
		}()
	}

	if cfg.Sweep.Enabled {
		sweeper, err := sweep.New(st, cfg.Sweep.SweepInterval(), func(ctx context.Context, key artifact.Key) (bool, error) {
			return coord.Refresh(ctx, key, horizon, renderer.GenerateFor(key))
		})
		if err != nil {
			return fmt.Errorf("refresh sweeper: %w", err)
		}
		if err := sweeper.Start(ctx); err != nil {
			return fmt.Errorf("refresh sweeper: %w", err)
		}
		defer func() {
			if err := sweeper.Stop(); err != nil {
				slog.Warn("Failed to stop refresh sweeper", "error", err)
			}
		}()
	}

	srv := httpserver.New(cfg, httpserver.Options{
		Coordinator: coord,
		Renderer:    renderer,
		Store:       st,
		Pool:        pool,
		Registry:    registry,
	})
	if err := srv.Start(ctx); err != nil {
		return err
	}

	slog.Info("Pagesmith started, waiting for shutdown signal...")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return srv.Stop(stopCtx)
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Pages.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLiteStore(cfg.Pages.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		slog.Info("Using sqlite artifact store", "path", cfg.Pages.Store.Path)
		return st, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// openSource builds the content source from configuration. A git source is
// synced once at startup; the returned root is the directory the watcher
// should cover.
func openSource(ctx context.Context, cfg *config.Config) (source.Source, string, error) {
	if cfg.Content.Git != nil {
		git, err := source.NewGitSource(cfg.Content.Git.URL, cfg.Content.Git.Branch, cfg.Content.Git.CheckoutDir)
		if err != nil {
			return nil, "", fmt.Errorf("git content source: %w", err)
		}
		if err := git.Sync(ctx); err != nil {
			return nil, "", fmt.Errorf("sync content repository: %w", err)
		}
		return git, git.Root(), nil
	}

	fs, err := source.NewFSSource(cfg.Content.Directory)
	if err != nil {
		return nil, "", fmt.Errorf("content source: %w", err)
	}
	return fs, cfg.Content.Directory, nil
}
