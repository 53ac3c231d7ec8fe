package sweep

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
	"git.home.luguber.info/inful/pagesmith/internal/store"
)

func seed(t *testing.T, st store.Store, key artifact.Key) {
	t.Helper()
	require.NoError(t, st.Put(context.Background(), &artifact.Artifact{
		Key:         key,
		Content:     []byte("x"),
		GeneratedAt: time.Now(),
		Horizon:     time.Minute,
	}))
}

func TestSweepOnce_RefreshesEveryStoredKey(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	seed(t, st, "/a")
	seed(t, st, "/b")

	var mu sync.Mutex
	seen := map[artifact.Key]int{}
	s, err := New(st, time.Minute, func(_ context.Context, key artifact.Key) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		seen[key]++
		return key == "/a", nil
	})
	require.NoError(t, err)

	s.SweepOnce(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen["/a"])
	assert.Equal(t, 1, seen["/b"])
}

func TestNew_RejectsNonPositiveInterval(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	_, err := New(st, 0, func(context.Context, artifact.Key) (bool, error) { return false, nil })
	assert.Error(t, err)
}

func TestSweeper_PeriodicTick(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	seed(t, st, "/a")

	tick := make(chan struct{}, 8)
	s, err := New(st, 20*time.Millisecond, func(context.Context, artifact.Key) (bool, error) {
		select {
		case tick <- struct{}{}:
		default:
		}
		return false, nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	select {
	case <-tick:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep never ticked")
	}
}
