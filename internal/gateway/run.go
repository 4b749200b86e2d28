package gateway

import (
	"context"
	"time"

	"github.com/minhducle291/linebot/internal/types"
)

// Run is one verified webhook request waiting for background processing.
// The body is kept raw; parsing happens on the worker.
type Run struct {
	ID         types.RunID
	Body       []byte
	Signature  string
	ReceivedAt time.Time

	// Ctx is set by the queue before the processor is invoked.
	Ctx context.Context
}

// NewRun wraps a verified request body.
func NewRun(body []byte, signature string) *Run {
	return &Run{
		ID:         types.NewRunID(),
		Body:       body,
		Signature:  signature,
		ReceivedAt: time.Now(),
	}
}
