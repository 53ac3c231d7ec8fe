// Package sweep proactively regenerates stale artifacts on a schedule so
// rarely requested pages do not pay the staleness window either.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/store"
)

// RefreshFunc triggers a background regeneration for one key, reporting
// whether a task was started. The coordinator's Refresh satisfies this.
type RefreshFunc func(ctx context.Context, key artifact.Key) (bool, error)

// Sweeper wraps a gocron scheduler running a periodic stale-artifact sweep.
type Sweeper struct {
	scheduler gocron.Scheduler
	store     store.Store
	refresh   RefreshFunc
	interval  time.Duration
}

// New creates a sweeper over the store. refresh is invoked for every stored
// key on each tick; keys that are absent or fresh are skipped by the refresh
// implementation itself.
func New(st store.Store, interval time.Duration, refresh RefreshFunc) (*Sweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive")
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Sweeper{
		scheduler: s,
		store:     st,
		refresh:   refresh,
		interval:  interval,
	}, nil
}

// Start schedules the periodic sweep and begins the scheduler.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.SweepOnce(ctx) }),
		gocron.WithName("refresh-sweep"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep job: %w", err)
	}

	slog.Info("Starting refresh sweeper", slog.Duration("interval", s.interval))
	s.scheduler.Start()
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Sweeper) Stop() error {
	slog.Info("Stopping refresh sweeper")
	return s.scheduler.Shutdown()
}

// SweepOnce walks all stored keys and triggers regeneration for stale ones.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		slog.Warn("Sweep failed to list keys", logfields.Error(err))
		return
	}

	started := 0
	for _, key := range keys {
		ok, err := s.refresh(ctx, key)
		if err != nil {
			slog.Warn("Sweep refresh failed", logfields.Page(string(key)), logfields.Error(err))
			continue
		}
		if ok {
			started++
		}
	}
	if started > 0 {
		slog.Info("Refresh sweep scheduled regenerations",
			slog.Int("keys", len(keys)),
			slog.Int("started", started))
	}
}
