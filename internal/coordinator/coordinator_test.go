package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
	"git.home.luguber.info/inful/pagesmith/internal/regen"
	"git.home.luguber.info/inful/pagesmith/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	clock *fakeClock
	store *store.MemoryStore
	pool  *regen.Pool
	coord *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newFakeClock()
	st := store.NewMemoryStore()
	pool := regen.NewPool(16, 2)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	return &fixture{
		clock: clock,
		store: st,
		pool:  pool,
		coord: New(st, pool, Options{Now: clock.Now}),
	}
}

func staticGen(content string) GenerateFunc {
	return func(context.Context) (*artifact.Artifact, error) {
		return &artifact.Artifact{
			Content:     []byte(content),
			ContentType: "text/html; charset=utf-8",
		}, nil
	}
}

// countingGen counts invocations and signals each completion.
func countingGen(content string, calls *atomic.Int32, done chan<- struct{}) GenerateFunc {
	return func(context.Context) (*artifact.Artifact, error) {
		calls.Add(1)
		if done != nil {
			done <- struct{}{}
		}
		return &artifact.Artifact{Content: []byte(content)}, nil
	}
}

func TestGet_AbsentGeneratesSynchronously(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32

	art, state, err := f.coord.Get(context.Background(), "/p", time.Minute, countingGen("v1", &calls, nil))
	require.NoError(t, err)
	assert.Equal(t, artifact.StateFresh, state)
	assert.Equal(t, []byte("v1"), art.Content)
	assert.Equal(t, int32(1), calls.Load())
	assert.NotEmpty(t, art.Revision)
	assert.True(t, art.GeneratedAt.Equal(f.clock.Now()))

	stored, err := f.store.Get(context.Background(), "/p")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), stored.Content)
}

func TestGet_AbsentGenerationFailureSurfacesError(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.coord.Get(context.Background(), "/broken", time.Minute, func(context.Context) (*artifact.Artifact, error) {
		return nil, errors.New("source unreachable")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source unreachable")

	// Nothing was stored.
	_, err = f.store.Get(context.Background(), "/broken")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGet_FreshNeverTriggersGeneration(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32

	_, _, err := f.coord.Get(context.Background(), "/p", time.Minute, countingGen("v1", &calls, nil))
	require.NoError(t, err)

	f.clock.Advance(30 * time.Second)

	for range 10 {
		art, state, err := f.coord.Get(context.Background(), "/p", time.Minute, countingGen("v2", &calls, nil))
		require.NoError(t, err)
		assert.Equal(t, artifact.StateFresh, state)
		assert.Equal(t, []byte("v1"), art.Content)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_StaleServesOldAndRegeneratesInBackground(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.coord.Get(ctx, "/p", time.Minute, staticGen("v1"))
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	var calls atomic.Int32
	done := make(chan struct{}, 1)
	art, state, err := f.coord.Get(ctx, "/p", time.Minute, countingGen("v2", &calls, done))
	require.NoError(t, err)
	assert.Equal(t, artifact.StateRegenerating, state)
	// The caller gets the stale content immediately.
	assert.Equal(t, []byte("v1"), art.Content)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for background regeneration")
	}
	waitForStored(t, f.store, "/p", "v2")
	assert.Equal(t, int32(1), calls.Load())

	// Replacement reset the age: fresh again at the current clock.
	refreshed, _, err := f.coord.Get(ctx, "/p", time.Minute, staticGen("v3"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), refreshed.Content)
	assert.True(t, refreshed.GeneratedAt.Equal(f.clock.Now()))
}

func TestGet_ConcurrentStaleRequestsTriggerAtMostOneRegeneration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.coord.Get(ctx, "/p", time.Minute, staticGen("v1"))
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	var calls atomic.Int32
	release := make(chan struct{})
	gen := func(context.Context) (*artifact.Artifact, error) {
		calls.Add(1)
		<-release
		return &artifact.Artifact{Content: []byte("v2")}, nil
	}

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			art, _, err := f.coord.Get(ctx, "/p", time.Minute, gen)
			assert.NoError(t, err)
			assert.Equal(t, []byte("v1"), art.Content)
		}()
	}
	wg.Wait()

	close(release)
	waitForStored(t, f.store, "/p", "v2")
	assert.Equal(t, int32(1), calls.Load(), "exactly one regeneration for %d concurrent stale requests", n)
}

func TestRegenerationFailureLeavesArtifactUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.coord.Get(ctx, "/p", time.Minute, staticGen("original"))
	require.NoError(t, err)
	before, err := f.store.Get(ctx, "/p")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	done := make(chan struct{}, 1)
	art, _, err := f.coord.Get(ctx, "/p", time.Minute, func(context.Context) (*artifact.Artifact, error) {
		defer func() { done <- struct{}{} }()
		return nil, errors.New("regen boom")
	})
	require.NoError(t, err, "regeneration failure must not surface to the caller")
	assert.Equal(t, []byte("original"), art.Content)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failed regeneration")
	}
	waitForInflightClear(t, f.coord, "/p")

	after, err := f.store.Get(ctx, "/p")
	require.NoError(t, err)
	assert.Equal(t, before.Content, after.Content, "artifact must be byte-for-byte unchanged")
	assert.Equal(t, before.Revision, after.Revision)
	assert.True(t, before.GeneratedAt.Equal(after.GeneratedAt))

	// The marker cleared, so a later request retries and succeeds.
	done2 := make(chan struct{}, 1)
	var calls atomic.Int32
	_, state, err := f.coord.Get(ctx, "/p", time.Minute, countingGen("recovered", &calls, done2))
	require.NoError(t, err)
	assert.Equal(t, artifact.StateRegenerating, state)
	select {
	case <-done2:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for retry regeneration")
	}
	waitForStored(t, f.store, "/p", "recovered")
}

// The horizon scenario: horizon 1s, generated at t=0; t=0.5 fresh; t=2 stale
// serves the old artifact and schedules regeneration; after it completes a
// request sees the new content.
func TestHorizonScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	horizon := time.Second

	// t=0: first request generates synchronously.
	art, _, err := f.coord.Get(ctx, "/page", horizon, staticGen("t0"))
	require.NoError(t, err)
	assert.Equal(t, []byte("t0"), art.Content)

	// t=0.5: fresh, same artifact, no regeneration.
	f.clock.Advance(500 * time.Millisecond)
	var calls atomic.Int32
	art, state, err := f.coord.Get(ctx, "/page", horizon, countingGen("t2", &calls, nil))
	require.NoError(t, err)
	assert.Equal(t, artifact.StateFresh, state)
	assert.Equal(t, []byte("t0"), art.Content)
	assert.Equal(t, int32(0), calls.Load())

	// t=2: stale; the t0 artifact is returned immediately and one
	// regeneration is scheduled.
	f.clock.Advance(1500 * time.Millisecond)
	done := make(chan struct{}, 1)
	art, _, err = f.coord.Get(ctx, "/page", horizon, countingGen("t2", &calls, done))
	require.NoError(t, err)
	assert.Equal(t, []byte("t0"), art.Content)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for regeneration")
	}
	waitForStored(t, f.store, "/page", "t2")

	// t=2.2: the regenerated content is served.
	f.clock.Advance(200 * time.Millisecond)
	art, state, err = f.coord.Get(ctx, "/page", horizon, staticGen("t3"))
	require.NoError(t, err)
	assert.Equal(t, artifact.StateFresh, state)
	assert.Equal(t, []byte("t2"), art.Content)
}

func TestInvalidate_ForcesStalenessBeforeHorizon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.coord.Get(ctx, "/p", time.Hour, staticGen("v1"))
	require.NoError(t, err)

	f.coord.Invalidate("/p", "watch")

	done := make(chan struct{}, 1)
	var calls atomic.Int32
	art, state, err := f.coord.Get(ctx, "/p", time.Hour, countingGen("v2", &calls, done))
	require.NoError(t, err)
	assert.Equal(t, artifact.StateRegenerating, state)
	assert.Equal(t, []byte("v1"), art.Content)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for regeneration")
	}
	waitForStored(t, f.store, "/p", "v2")
	waitForInflightClear(t, f.coord, "/p")

	// Successful regeneration clears the forced mark.
	_, state, err = f.coord.Get(ctx, "/p", time.Hour, staticGen("v3"))
	require.NoError(t, err)
	assert.Equal(t, artifact.StateFresh, state)
}

func TestRefresh_SkipsAbsentAndFreshKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.coord.Refresh(ctx, "/missing", time.Minute, staticGen("x"))
	require.NoError(t, err)
	assert.False(t, started)

	_, _, err = f.coord.Get(ctx, "/p", time.Minute, staticGen("v1"))
	require.NoError(t, err)

	started, err = f.coord.Refresh(ctx, "/p", time.Minute, staticGen("v2"))
	require.NoError(t, err)
	assert.False(t, started, "fresh artifact must not be refreshed")

	f.clock.Advance(2 * time.Minute)
	done := make(chan struct{}, 1)
	var calls atomic.Int32
	started, err = f.coord.Refresh(ctx, "/p", time.Minute, countingGen("v2", &calls, done))
	require.NoError(t, err)
	assert.True(t, started)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for refresh regeneration")
	}
	waitForStored(t, f.store, "/p", "v2")
}

func TestGet_PerPageHorizonOverrideWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gen := func(context.Context) (*artifact.Artifact, error) {
		return &artifact.Artifact{Content: []byte("v1"), Horizon: 10 * time.Second}, nil
	}

	_, _, err := f.coord.Get(ctx, "/p", time.Hour, gen)
	require.NoError(t, err)

	// Past the override, well within the default: stale.
	f.clock.Advance(30 * time.Second)
	_, state, err := f.coord.Get(ctx, "/p", time.Hour, staticGen("v2"))
	require.NoError(t, err)
	assert.Equal(t, artifact.StateRegenerating, state)
}

func TestState_Reporting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state, err := f.coord.State(ctx, "/p")
	require.NoError(t, err)
	assert.Equal(t, artifact.StateAbsent, state)

	_, _, err = f.coord.Get(ctx, "/p", time.Minute, staticGen("v1"))
	require.NoError(t, err)

	state, err = f.coord.State(ctx, "/p")
	require.NoError(t, err)
	assert.Equal(t, artifact.StateFresh, state)

	f.clock.Advance(2 * time.Minute)
	state, err = f.coord.State(ctx, "/p")
	require.NoError(t, err)
	assert.Equal(t, artifact.StateStaleServing, state)
}

func waitForStored(t *testing.T, st store.Store, key artifact.Key, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		art, err := st.Get(context.Background(), key)
		if err == nil && string(art.Content) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("artifact %q never reached content %q", key, want)
}

func waitForInflightClear(t *testing.T, c *Coordinator, key artifact.Key) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m, ok := c.inflight.Load(key); !ok || !m.(*atomic.Bool).Load() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("in-flight marker for %q never cleared", key)
}
