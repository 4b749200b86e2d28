package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer is saturated.
	ErrQueueFull = errors.New("queue full")
	// ErrQueueStopped is returned by Enqueue after Stop.
	ErrQueueStopped = errors.New("queue stopped")
)

const (
	DefaultWorkers   = 2
	DefaultQueueSize = 64
)

// Queue is a bounded FIFO of runs drained by a fixed number of workers.
// The semaphore caps how many runs are processed at once; ordering across
// runs is not preserved once they reach the workers.
type Queue struct {
	runs      chan *Run
	semaphore *semaphore.Weighted
	processor func(*Run) error
	pending   atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a Queue with the given worker count and buffer size.
// Non-positive values fall back to the defaults.
func NewQueue(workers int64, size int) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		runs:      make(chan *Run, size),
		semaphore: semaphore.NewWeighted(workers),
	}
}

// Start launches the dispatch loop. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(1)
	go q.dispatch()
}

// Stop closes the queue to new runs, lets buffered and in-flight runs
// finish, then cancels the queue context.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.runs)
	q.mu.Unlock()

	q.wg.Wait()
	if q.cancel != nil {
		q.cancel()
	}
}

// Enqueue adds a run without blocking. It returns ErrQueueFull when the
// buffer has no room.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueStopped
	}

	q.pending.Add(1)
	select {
	case q.runs <- run:
		return nil
	default:
		q.pending.Add(-1)
		return fmt.Errorf("run %s: %w", run.ID, ErrQueueFull)
	}
}

// dispatch hands each run to a worker goroutine once a semaphore slot is
// free.
func (q *Queue) dispatch() {
	defer q.wg.Done()
	for run := range q.runs {
		if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
			slog.Warn("dropping run, queue cancelled", "run_id", string(run.ID))
			q.pending.Add(-1)
			continue
		}
		q.wg.Add(1)
		go func(run *Run) {
			defer q.wg.Done()
			defer q.semaphore.Release(1)
			defer q.pending.Add(-1)
			q.process(run)
		}(run)
	}
}

func (q *Queue) process(run *Run) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("run panicked", "run_id", string(run.ID), "panic", r)
		}
	}()
	if q.processor == nil {
		return
	}
	run.Ctx = q.ctx
	if err := q.processor(run); err != nil {
		slog.Error("run failed", "run_id", string(run.ID), "error", err)
	}
}

// Pending returns the number of runs buffered or being processed.
func (q *Queue) Pending() int64 {
	return q.pending.Load()
}

// WaitIdle blocks until no runs are buffered or being processed, or the
// timeout expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.pending.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued Run.
func (q *Queue) SetProcessor(fn func(*Run) error) {
	q.processor = fn
}
