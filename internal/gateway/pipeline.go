package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/minhducle291/linebot/internal/dedupe"
	"github.com/minhducle291/linebot/internal/delivery"
	"github.com/minhducle291/linebot/internal/line"
	"github.com/minhducle291/linebot/internal/types"
)

// State is the terminal (or last reached) state of one event.
type State string

const (
	StateReceived             State = "received"
	StateDiscardedVerify      State = "discarded_verify"
	StateDiscardedRedelivery  State = "discarded_redelivery"
	StateDiscardedDuplicate   State = "discarded_duplicate"
	StateDiscardedUnsupported State = "discarded_unsupported"
	StateAccepted             State = "accepted"
	StateResolved             State = "resolved"
	StateSent                 State = "sent"
	StateDropped              State = "dropped"
)

const DefaultResolveTimeout = 10 * time.Second

// Messages sent in place of resolver output that never arrived.
const (
	resolveFailedText  = "Sorry, something went wrong while preparing your report. Please try again."
	resolveTimeoutText = "Sorry, the report is taking too long to prepare. Please try again in a moment."
)

// Pipeline takes parsed events through verify, redelivery, dedupe,
// resolve and dispatch, strictly in that order.
type Pipeline struct {
	guard          dedupe.Guard
	resolver       types.Resolver
	dispatcher     *delivery.Dispatcher
	resolveTimeout time.Duration
	redelivery     RedeliveryPolicy
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithResolveTimeout caps how long the pipeline waits for the resolver.
func WithResolveTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.resolveTimeout = d }
}

// WithRedeliveryPolicy sets how redelivered events are treated.
func WithRedeliveryPolicy(policy RedeliveryPolicy) PipelineOption {
	return func(p *Pipeline) { p.redelivery = policy }
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(guard dedupe.Guard, resolver types.Resolver, dispatcher *delivery.Dispatcher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		guard:          guard,
		resolver:       resolver,
		dispatcher:     dispatcher,
		resolveTimeout: DefaultResolveTimeout,
		redelivery:     RedeliveryDrop,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessRun is the queue processor: it parses the run body and handles
// each event in order.
func (p *Pipeline) ProcessRun(run *Run) error {
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	events, err := line.ParseEvents(run.Body)
	if err != nil {
		return fmt.Errorf("parse run body: %w", err)
	}
	slog.Debug("processing run", "run_id", string(run.ID), "events", len(events), "queued_for", time.Since(run.ReceivedAt))

	for _, ev := range events {
		ev.RunID = run.ID
		p.Handle(ctx, ev)
	}
	return nil
}

// Handle processes a single event and returns the state it ended in.
// It never panics and never returns an error; every branch ends in a
// dispatched message or a logged drop.
func (p *Pipeline) Handle(ctx context.Context, ev *types.InboundEvent) State {
	log := slog.With("run_id", string(ev.RunID), "event_id", string(ev.ID), "event_kind", string(ev.Kind))

	if ev.ReplyToken == line.VerifyReplyToken {
		log.Info("discarding verification event")
		return StateDiscardedVerify
	}

	redelivered := IsRedelivery(ev)
	if redelivered && p.redelivery != RedeliveryPush {
		log.Info("discarding redelivered event", "webhook_event_id", ev.WebhookEventID)
		return StateDiscardedRedelivery
	}

	if ev.Kind == types.KindUnsupported {
		log.Debug("skipping unsupported event", "type", ev.Type)
		return StateDiscardedUnsupported
	}

	key := dedupe.Key(ev)
	if key != "" {
		seen, err := p.guard.Contains(ctx, key)
		if err != nil {
			log.Warn("dedupe lookup failed, processing anyway", "dedupe_key", key, "error", err)
		}
		if seen {
			log.Info("discarding duplicate event", "dedupe_key", key)
			return StateDiscardedDuplicate
		}
		if err := p.guard.Add(ctx, key); err != nil {
			log.Warn("dedupe insert failed", "dedupe_key", key, "error", err)
		}
	}

	log.Debug("event accepted", "state", string(StateAccepted), "dedupe_key", key)

	messages := p.resolve(ctx, log, ev)
	log.Debug("event resolved", "state", string(StateResolved), "messages", len(messages))

	var outcome delivery.Outcome
	if redelivered {
		outcome = p.dispatcher.Push(ctx, ev.Source, messages)
	} else {
		outcome = p.dispatcher.ReplyOrPush(ctx, ev.ReplyToken, ev.Source, messages)
	}

	log.Info("event dispatched", "outcome", string(outcome), "messages", len(messages), "redelivery", redelivered)
	if outcome.Delivered() {
		return StateSent
	}
	return StateDropped
}

// resolve invokes the resolver under a soft timeout. On timeout the
// resolver goroutine is left to finish on its own; its result is ignored.
func (p *Pipeline) resolve(ctx context.Context, log *slog.Logger, ev *types.InboundEvent) []types.OutboundMessage {
	rctx, cancel := context.WithTimeout(ctx, p.resolveTimeout)
	defer cancel()

	done := make(chan []types.OutboundMessage, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("resolver panicked", "panic", r)
				done <- types.Text(resolveFailedText)
			}
		}()
		done <- p.resolver.Resolve(rctx, ev)
	}()

	select {
	case msgs := <-done:
		return msgs
	case <-rctx.Done():
		log.Warn("resolver timed out", "timeout", p.resolveTimeout)
		return types.Text(resolveTimeoutText)
	}
}
