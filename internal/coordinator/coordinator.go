// Package coordinator decides, per resource key, whether to serve the stored
// artifact, regenerate it in the background, or generate it synchronously.
//
// Guarantees:
//   - reads never block on generation work
//   - at most one regeneration is in flight per key, enforced by a per-key
//     compare-and-swap marker (unrelated keys are never serialized)
//   - a stale artifact stays servable until a replacement succeeds
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
	pserrors "git.home.luguber.info/inful/pagesmith/internal/errors"
	"git.home.luguber.info/inful/pagesmith/internal/events"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
	"git.home.luguber.info/inful/pagesmith/internal/regen"
	"git.home.luguber.info/inful/pagesmith/internal/store"
)

// GenerateFunc produces a new artifact for a key. Implementations may leave
// Key, Revision, GeneratedAt and Horizon unset; the coordinator stamps them.
type GenerateFunc func(ctx context.Context) (*artifact.Artifact, error)

// Options configures optional coordinator collaborators.
type Options struct {
	Metrics metrics.Recorder
	Events  events.Sink
	// Now injects a clock for tests. Defaults to time.Now.
	Now func() time.Time
	// RegenTimeout bounds one background regeneration run. Zero means no
	// timeout. A timed-out run counts as a failure and leaves the stored
	// artifact untouched.
	RegenTimeout time.Duration
}

// Coordinator owns the serve/regenerate decision for all resource keys.
type Coordinator struct {
	store        store.Store
	pool         *regen.Pool
	metrics      metrics.Recorder
	events       events.Sink
	now          func() time.Time
	regenTimeout time.Duration

	inflight sync.Map // artifact.Key -> *atomic.Bool
	forced   sync.Map // artifact.Key -> struct{} (invalidated, stale regardless of age)
}

// New creates a coordinator over the given store and worker pool.
func New(st store.Store, pool *regen.Pool, opts Options) *Coordinator {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	if opts.Events == nil {
		opts.Events = events.NoopSink{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		store:        st,
		pool:         pool,
		metrics:      opts.Metrics,
		events:       opts.Events,
		now:          opts.Now,
		regenTimeout: opts.RegenTimeout,
	}
}

// Get returns the artifact for key, generating it if needed.
//
// Absent key: generate synchronously; a failure is surfaced to the caller.
// Fresh artifact: returned immediately, no background work.
// Stale artifact: returned immediately; exactly one background regeneration
// is triggered across all concurrent callers.
func (c *Coordinator) Get(ctx context.Context, key artifact.Key, horizon time.Duration, generate GenerateFunc) (*artifact.Artifact, artifact.State, error) {
	start := time.Now()

	art, err := c.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return c.generateSync(ctx, key, horizon, generate, start)
	}
	if err != nil {
		return nil, artifact.StateAbsent, pserrors.StorageError(err, "load artifact").WithContext("key", string(key))
	}

	if !c.isStale(art) {
		c.metrics.ObserveRequest(metrics.OutcomeFresh, time.Since(start))
		return art, artifact.StateFresh, nil
	}

	state := artifact.StateStaleServing
	if c.triggerRegeneration(key, horizon, generate) {
		state = artifact.StateRegenerating
	}
	c.metrics.ObserveRequest(metrics.OutcomeStale, time.Since(start))
	slog.Debug("Serving stale artifact",
		logfields.Page(string(key)),
		logfields.AgeSeconds(art.Age(c.now()).Seconds()),
		logfields.HorizonSeconds(art.Horizon.Seconds()))
	return art, state, nil
}

// Invalidate marks a key stale regardless of its age. The next request (or
// sweep) regenerates it; the stored artifact keeps serving until then.
func (c *Coordinator) Invalidate(key artifact.Key, trigger string) {
	c.forced.Store(key, struct{}{})
	c.metrics.IncInvalidation(trigger)
	slog.Debug("Artifact invalidated", logfields.Page(string(key)), slog.String("trigger", trigger))
}

// Refresh triggers a background regeneration for a stale stored artifact.
// It reports whether a regeneration task was started. Keys with no stored
// artifact or a fresh artifact are left alone.
func (c *Coordinator) Refresh(ctx context.Context, key artifact.Key, horizon time.Duration, generate GenerateFunc) (bool, error) {
	art, err := c.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, pserrors.StorageError(err, "load artifact").WithContext("key", string(key))
	}
	if !c.isStale(art) {
		return false, nil
	}
	return c.triggerRegeneration(key, horizon, generate), nil
}

// State reports the generation state of a key for diagnostics.
func (c *Coordinator) State(ctx context.Context, key artifact.Key) (artifact.State, error) {
	art, err := c.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return artifact.StateAbsent, nil
	}
	if err != nil {
		return artifact.StateAbsent, pserrors.StorageError(err, "load artifact").WithContext("key", string(key))
	}
	if marker, ok := c.inflight.Load(key); ok && marker.(*atomic.Bool).Load() {
		return artifact.StateRegenerating, nil
	}
	if c.isStale(art) {
		return artifact.StateStaleServing, nil
	}
	return artifact.StateFresh, nil
}

func (c *Coordinator) generateSync(ctx context.Context, key artifact.Key, horizon time.Duration, generate GenerateFunc, start time.Time) (*artifact.Artifact, artifact.State, error) {
	taskID := uuid.NewString()
	genStart := time.Now()
	art, err := generate(ctx)
	genDuration := time.Since(genStart)

	if err != nil {
		c.metrics.ObserveRequest(metrics.OutcomeError, time.Since(start))
		c.metrics.ObserveGeneration("sync", genDuration, false)
		c.publishEvent(ctx, taskID, key, "sync", genDuration, err)
		// No artifact to fall back on: the failure reaches the caller.
		return nil, artifact.StateAbsent, pserrors.Wrap(err, pserrors.CategoryRender, pserrors.SeverityError, "generate page").WithContext("key", string(key))
	}

	c.stamp(art, key, horizon)
	if err := c.store.Put(ctx, art); err != nil {
		c.metrics.ObserveRequest(metrics.OutcomeError, time.Since(start))
		return nil, artifact.StateAbsent, pserrors.StorageError(err, "store artifact").WithContext("key", string(key))
	}

	c.forced.Delete(key)
	c.metrics.ObserveRequest(metrics.OutcomeMiss, time.Since(start))
	c.metrics.ObserveGeneration("sync", genDuration, true)
	c.publishEvent(ctx, taskID, key, "sync", genDuration, nil)
	slog.Info("Page generated",
		logfields.Page(string(key)),
		logfields.TaskID(taskID),
		logfields.DurationMS(float64(genDuration.Milliseconds())))
	return art, artifact.StateFresh, nil
}

// triggerRegeneration performs the atomic check-and-set on the per-key
// in-flight marker. Exactly one caller wins regardless of how many requests
// arrive simultaneously for a stale key.
func (c *Coordinator) triggerRegeneration(key artifact.Key, horizon time.Duration, generate GenerateFunc) bool {
	marker := c.marker(key)
	if !marker.CompareAndSwap(false, true) {
		c.metrics.IncRegenSuppressed()
		return false
	}

	taskID := uuid.NewString()
	task := regen.Task{
		ID:  taskID,
		Key: string(key),
		Run: func(ctx context.Context) {
			defer marker.Store(false)
			c.runRegeneration(ctx, taskID, key, horizon, generate)
		},
	}

	if err := c.pool.Submit(task); err != nil {
		marker.Store(false)
		slog.Warn("Failed to enqueue regeneration",
			logfields.Page(string(key)),
			logfields.Error(err))
		return false
	}

	c.metrics.SetRegenQueueLength(c.pool.QueueLength())
	slog.Debug("Regeneration scheduled", logfields.Page(string(key)), logfields.TaskID(taskID))
	return true
}

func (c *Coordinator) runRegeneration(ctx context.Context, taskID string, key artifact.Key, horizon time.Duration, generate GenerateFunc) {
	if c.regenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.regenTimeout)
		defer cancel()
	}

	c.metrics.SetRegenInflight(c.pool.ActiveCount())
	defer func() { c.metrics.SetRegenInflight(c.pool.ActiveCount() - 1) }()

	genStart := time.Now()
	art, err := generate(ctx)
	genDuration := time.Since(genStart)

	if err != nil {
		// The previous artifact stays untouched and servable; a later
		// request may retry once the marker clears.
		c.metrics.ObserveGeneration("background", genDuration, false)
		c.publishEvent(ctx, taskID, key, "background", genDuration, err)
		slog.Warn("Regeneration failed, keeping previous artifact",
			logfields.Page(string(key)),
			logfields.TaskID(taskID),
			logfields.Error(err))
		return
	}

	c.stamp(art, key, horizon)
	if err := c.store.Put(ctx, art); err != nil {
		c.metrics.ObserveGeneration("background", genDuration, false)
		c.publishEvent(ctx, taskID, key, "background", genDuration, err)
		slog.Error("Failed to store regenerated artifact",
			logfields.Page(string(key)),
			logfields.TaskID(taskID),
			logfields.Error(err))
		return
	}

	c.forced.Delete(key)
	c.metrics.ObserveGeneration("background", genDuration, true)
	c.publishEvent(ctx, taskID, key, "background", genDuration, nil)
	slog.Info("Page regenerated",
		logfields.Page(string(key)),
		logfields.TaskID(taskID),
		logfields.DurationMS(float64(genDuration.Milliseconds())))
}

// stamp fills coordinator-owned artifact metadata after a successful
// generation: the key, a fresh revision, the generation timestamp (resetting
// the age), and the horizon unless the generator set a per-page override.
func (c *Coordinator) stamp(art *artifact.Artifact, key artifact.Key, horizon time.Duration) {
	art.Key = key
	art.GeneratedAt = c.now()
	if art.Horizon == 0 {
		art.Horizon = horizon
	}
	if art.Revision == "" {
		art.Revision = uuid.NewString()
	}
}

func (c *Coordinator) isStale(art *artifact.Artifact) bool {
	if _, forced := c.forced.Load(art.Key); forced {
		return true
	}
	return !art.Fresh(c.now())
}

func (c *Coordinator) marker(key artifact.Key) *atomic.Bool {
	m, _ := c.inflight.LoadOrStore(key, &atomic.Bool{})
	return m.(*atomic.Bool)
}

func (c *Coordinator) publishEvent(ctx context.Context, taskID string, key artifact.Key, kind string, d time.Duration, genErr error) {
	evt := events.RegenerationEvent{
		TaskID:     taskID,
		Key:        string(key),
		Kind:       kind,
		Outcome:    "success",
		DurationMS: float64(d.Milliseconds()),
		Timestamp:  c.now(),
	}
	if genErr != nil {
		evt.Outcome = "failed"
		evt.Error = genErr.Error()
	}
	if err := c.events.PublishRegeneration(ctx, evt); err != nil {
		slog.Warn("Failed to publish regeneration event",
			logfields.Page(string(key)),
			logfields.Error(err))
	}
}
