package gateway

import (
	"context"
	"time"

	"github.com/minhducle291/linebot/internal/types"
)

// Gateway owns the worker queue and feeds verified webhook bodies to the
// pipeline in the background.
type Gateway struct {
	Queue    *Queue
	pipeline *Pipeline
}

// New creates a Gateway processing runs through pipeline with the given
// worker count and queue size.
func New(pipeline *Pipeline, workers int64, queueSize int) *Gateway {
	q := NewQueue(workers, queueSize)
	q.SetProcessor(pipeline.ProcessRun)
	return &Gateway{Queue: q, pipeline: pipeline}
}

// Start starts the worker queue.
func (g *Gateway) Start(ctx context.Context) {
	g.Queue.Start(ctx)
}

// Stop stops accepting runs and waits for buffered ones to finish.
func (g *Gateway) Stop() {
	g.Queue.Stop()
}

// Submit wraps a verified body in a Run and enqueues it. It never blocks;
// a saturated queue yields ErrQueueFull.
func (g *Gateway) Submit(body []byte, signature string) (types.RunID, error) {
	run := NewRun(body, signature)
	return run.ID, g.Queue.Enqueue(run)
}

// WaitIdle waits until the queue has drained.
func (g *Gateway) WaitIdle(timeout time.Duration) bool {
	return g.Queue.WaitIdle(timeout)
}
