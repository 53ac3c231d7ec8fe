package regen

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ExecutesSubmittedTasks(t *testing.T) {
	pool := NewPool(8, 2)
	pool.Start(context.Background())
	defer pool.Stop()

	var ran atomic.Int32
	done := make(chan struct{})
	require.NoError(t, pool.Submit(Task{
		ID:  "task-1",
		Key: "/p",
		Run: func(context.Context) {
			ran.Add(1)
			close(done)
		},
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task")
	}
	assert.Equal(t, int32(1), ran.Load())
}

func TestPool_SubmitRejectsWhenQueueFull(t *testing.T) {
	pool := NewPool(1, 1)
	// Not started: nothing drains the queue.
	require.NoError(t, pool.Submit(Task{ID: "a", Run: func(context.Context) {}}))
	err := pool.Submit(Task{ID: "b", Run: func(context.Context) {}})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, pool.QueueLength())
}

func TestPool_SubmitRequiresRunFunc(t *testing.T) {
	pool := NewPool(1, 1)
	assert.Error(t, pool.Submit(Task{ID: "a"}))
}

func TestPool_StopWaitsForRunningTask(t *testing.T) {
	pool := NewPool(4, 1)
	pool.Start(context.Background())

	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, pool.Submit(Task{
		ID: "slow",
		Run: func(context.Context) {
			close(started)
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
		},
	}))

	<-started
	pool.Stop()
	assert.True(t, finished.Load())
}
