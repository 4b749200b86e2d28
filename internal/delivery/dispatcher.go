// Package delivery sends responses for one event over the single-use reply
// channel, with a bounded retry and an optional push fallback.
package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/minhducle291/linebot/internal/types"
)

// Outcome is the terminal result of a dispatch.
type Outcome string

const (
	OutcomeSent           Outcome = "sent"
	OutcomePushed         Outcome = "pushed"
	OutcomeDroppedExpired Outcome = "dropped_expired"
	OutcomeDroppedError   Outcome = "dropped_error"
)

// Delivered reports whether the user received the messages.
func (o Outcome) Delivered() bool {
	return o == OutcomeSent || o == OutcomePushed
}

const (
	// MaxMessages is the platform limit of messages per reply or push call.
	MaxMessages = 5

	// Placeholder replaces an empty message list.
	Placeholder = "(no content)"

	DefaultBackoff = 500 * time.Millisecond
)

// Dispatcher performs reply and push calls. A reply is attempted at most
// twice (one retry, transient failures only) and a push at most once.
type Dispatcher struct {
	messenger    types.Messenger
	backoff      time.Duration
	pushFallback bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBackoff sets the fixed delay before the single transient retry.
func WithBackoff(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.backoff = d }
}

// WithPushFallback enables pushing to the event source when the reply
// token has expired.
func WithPushFallback(enabled bool) Option {
	return func(dp *Dispatcher) { dp.pushFallback = enabled }
}

// New creates a Dispatcher over the given messenger.
func New(messenger types.Messenger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		messenger: messenger,
		backoff:   DefaultBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// PushFallback reports whether expired replies fall back to push.
func (d *Dispatcher) PushFallback() bool {
	return d.pushFallback
}

// Reply sends messages with the reply token.
func (d *Dispatcher) Reply(ctx context.Context, replyToken string, messages []types.OutboundMessage) Outcome {
	return d.reply(ctx, replyToken, prepare(messages))
}

// ReplyOrPush replies and, when push fallback is enabled and the token has
// expired, pushes the same messages to the source instead.
func (d *Dispatcher) ReplyOrPush(ctx context.Context, replyToken string, source types.Source, messages []types.OutboundMessage) Outcome {
	messages = prepare(messages)
	outcome := d.reply(ctx, replyToken, messages)
	if outcome != OutcomeDroppedExpired || !d.pushFallback {
		return outcome
	}
	if source.TargetID() == "" {
		slog.Warn("push fallback skipped, source has no target id", "source_kind", source.Kind)
		return outcome
	}
	return d.push(ctx, source, messages)
}

// Push sends messages to the source's persistent id without a reply token.
func (d *Dispatcher) Push(ctx context.Context, source types.Source, messages []types.OutboundMessage) Outcome {
	return d.push(ctx, source, prepare(messages))
}

func (d *Dispatcher) reply(ctx context.Context, replyToken string, messages []types.OutboundMessage) Outcome {
	token := types.ShortToken(replyToken)

	err := d.messenger.Reply(ctx, replyToken, messages)
	if err == nil {
		return OutcomeSent
	}

	switch class := Classify(err); class {
	case ClassExpired:
		slog.Info("reply token invalid or expired, dropping", "reply_token", token)
		return OutcomeDroppedExpired

	case ClassTransient:
		slog.Warn("reply failed on connection, retrying once", "reply_token", token, "backoff", d.backoff, "error", err)
		if err := sleep(ctx, d.backoff); err != nil {
			slog.Error("reply retry abandoned", "reply_token", token, "error", err)
			return OutcomeDroppedError
		}
		if err := d.messenger.Reply(ctx, replyToken, messages); err != nil {
			slog.Error("reply retry failed", "reply_token", token, "class", Classify(err).String(), "error", err)
			return OutcomeDroppedError
		}
		return OutcomeSent

	default:
		slog.Error("reply failed", "reply_token", token, "class", class.String(), "error", err)
		return OutcomeDroppedError
	}
}

func (d *Dispatcher) push(ctx context.Context, source types.Source, messages []types.OutboundMessage) Outcome {
	target := source.TargetID()
	if target == "" {
		slog.Warn("push skipped, source has no target id", "source_kind", source.Kind)
		return OutcomeDroppedError
	}
	if err := d.messenger.Push(ctx, target, messages); err != nil {
		slog.Error("push failed", "source_kind", source.Kind, "error", err)
		return OutcomeDroppedError
	}
	return OutcomePushed
}

// prepare enforces the platform's non-empty and maximum-size constraints.
func prepare(messages []types.OutboundMessage) []types.OutboundMessage {
	if len(messages) == 0 {
		return types.Text(Placeholder)
	}
	if len(messages) > MaxMessages {
		slog.Warn("truncating outbound messages", "count", len(messages), "max", MaxMessages)
		return messages[:MaxMessages]
	}
	return messages
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
