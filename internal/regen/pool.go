// Package regen runs regeneration tasks on a bounded worker pool so page
// requests never block on generation work.
package regen

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/logfields"
)

// Task is one unit of background work. Run receives a context owned by the
// pool, not by any request: a started task always runs to completion even
// when the triggering request has long since been answered.
type Task struct {
	ID  string
	Key string
	Run func(ctx context.Context)
}

// ErrQueueFull is returned by Submit when the task queue is at capacity.
var ErrQueueFull = fmt.Errorf("regeneration queue is full")

// Pool executes tasks with a fixed number of workers and a bounded queue.
type Pool struct {
	tasks    chan Task
	workers  int
	active   atomic.Int64
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPool creates a pool with the specified queue size and worker count.
func NewPool(queueSize, workers int) *Pool {
	if queueSize <= 0 {
		queueSize = 64
	}
	if workers <= 0 {
		workers = 2
	}
	return &Pool{
		tasks:    make(chan Task, queueSize),
		workers:  workers,
		stopChan: make(chan struct{}),
	}
}

// Start begins processing tasks with the configured number of workers.
func (p *Pool) Start(ctx context.Context) {
	slog.Info("Starting regeneration pool",
		slog.Int("workers", p.workers),
		slog.Int("queue_size", cap(p.tasks)))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, fmt.Sprintf("regen-worker-%d", i))
	}
}

// Stop drains workers. Running tasks finish; queued tasks are abandoned.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
	slog.Info("Regeneration pool stopped")
}

// Submit enqueues a task without blocking. Callers must handle ErrQueueFull.
func (p *Pool) Submit(task Task) error {
	if task.Run == nil {
		return fmt.Errorf("task run function is required")
	}
	select {
	case p.tasks <- task:
		slog.Debug("Regeneration task enqueued",
			logfields.TaskID(task.ID),
			logfields.Page(task.Key))
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueLength returns the number of tasks waiting for a worker.
func (p *Pool) QueueLength() int { return len(p.tasks) }

// ActiveCount returns the number of tasks currently executing.
func (p *Pool) ActiveCount() int { return int(p.active.Load()) }

func (p *Pool) worker(ctx context.Context, workerID string) {
	defer p.wg.Done()

	slog.Debug("Regeneration worker started", slog.String("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Regeneration worker stopped by context", slog.String("worker_id", workerID))
			return
		case <-p.stopChan:
			slog.Debug("Regeneration worker stopped by stop signal", slog.String("worker_id", workerID))
			return
		case task := <-p.tasks:
			p.runTask(ctx, task, workerID)
		}
	}
}

func (p *Pool) runTask(ctx context.Context, task Task, workerID string) {
	p.active.Add(1)
	defer p.active.Add(-1)

	start := time.Now()
	slog.Debug("Regeneration task started",
		logfields.TaskID(task.ID),
		logfields.Page(task.Key),
		slog.String("worker_id", workerID))

	// Tasks are not tied to request lifetimes; only pool shutdown's context
	// applies here.
	task.Run(ctx)

	slog.Debug("Regeneration task finished",
		logfields.TaskID(task.ID),
		logfields.Page(task.Key),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
}
