package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/minhducle291/linebot/internal/dedupe"
	"github.com/minhducle291/linebot/internal/delivery"
	"github.com/minhducle291/linebot/internal/line"
	"github.com/minhducle291/linebot/internal/types"
)

type sentCall struct {
	kind   string
	target string
	msgs   []types.OutboundMessage
}

type fakeMessenger struct {
	mu       sync.Mutex
	replyErr error
	calls    []sentCall
}

func (f *fakeMessenger) Reply(_ context.Context, token string, msgs []types.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{"reply", token, msgs})
	return f.replyErr
}

func (f *fakeMessenger) Push(_ context.Context, to string, msgs []types.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{"push", to, msgs})
	return nil
}

func (f *fakeMessenger) snapshot() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCall(nil), f.calls...)
}

// resolverFunc adapts a function to types.Resolver.
type resolverFunc func(ctx context.Context, ev *types.InboundEvent) []types.OutboundMessage

func (f resolverFunc) Resolve(ctx context.Context, ev *types.InboundEvent) []types.OutboundMessage {
	return f(ctx, ev)
}

func echoResolver() types.Resolver {
	return resolverFunc(func(_ context.Context, ev *types.InboundEvent) []types.OutboundMessage {
		if ev.Text != nil && ev.Text.Text == "ping" {
			return types.Text("pong")
		}
		return types.Text("hint")
	})
}

type brokenGuard struct{}

func (brokenGuard) Contains(context.Context, string) (bool, error) { return false, errors.New("down") }
func (brokenGuard) Add(context.Context, string) error { return errors.New("down") }

func textEvent(token, user, msgID, text string) *types.InboundEvent {
	return &types.InboundEvent{
		ID:         types.NewEventID(),
		Kind:       types.KindText,
		Type:       "message.text",
		ReplyToken: token,
		Source:     types.Source{Kind: types.SourceUser, UserID: user},
		Text:       &types.TextContent{MessageID: msgID, Text: text},
	}
}

func newTestPipeline(m *fakeMessenger, opts ...PipelineOption) *Pipeline {
	d := delivery.New(m, delivery.WithBackoff(0))
	return NewPipeline(dedupe.NewMemory(time.Minute, 100), echoResolver(), d, opts...)
}

func TestPipelinePingReplies(t *testing.T) {
	m := &fakeMessenger{}
	p := newTestPipeline(m)

	state := p.Handle(context.Background(), textEvent("abc", "u1", "m1", "ping"))
	if state != StateSent {
		t.Fatalf("expected sent, got %s", state)
	}
	calls := m.snapshot()
	if len(calls) != 1 || calls[0].kind != "reply" || calls[0].target != "abc" {
		t.Fatalf("expected one reply with token abc, got %+v", calls)
	}
	if txt, ok := calls[0].msgs[0].(types.TextMessage); !ok || txt.Text != "pong" {
		t.Errorf("expected pong, got %#v", calls[0].msgs[0])
	}
}

func TestPipelineRedeliveryDropped(t *testing.T) {
	m := &fakeMessenger{}
	p := newTestPipeline(m)

	ev := textEvent("abc", "u1", "m1", "ping")
	ev.Redelivery = true
	if state := p.Handle(context.Background(), ev); state != StateDiscardedRedelivery {
		t.Fatalf("expected discarded_redelivery, got %s", state)
	}
	if calls := m.snapshot(); len(calls) != 0 {
		t.Errorf("expected no calls, got %+v", calls)
	}

	// A redelivered event does not consume its dedupe key.
	if state := p.Handle(context.Background(), textEvent("def", "u1", "m1", "ping")); state != StateSent {
		t.Errorf("expected original delivery to be sent, got %s", state)
	}
}

func TestPipelineRedeliveryPushPolicy(t *testing.T) {
	m := &fakeMessenger{}
	p := newTestPipeline(m, WithRedeliveryPolicy(RedeliveryPush))

	ev := textEvent("stale", "u1", "m1", "ping")
	ev.Redelivery = true
	if state := p.Handle(context.Background(), ev); state != StateSent {
		t.Fatalf("expected sent via push, got %s", state)
	}
	calls := m.snapshot()
	if len(calls) != 1 || calls[0].kind != "push" || calls[0].target != "u1" {
		t.Fatalf("expected a single push to u1, got %+v", calls)
	}

	again := textEvent("stale", "u1", "m1", "ping")
	again.Redelivery = true
	if state := p.Handle(context.Background(), again); state != StateDiscardedDuplicate {
		t.Errorf("expected second redelivery to be deduplicated, got %s", state)
	}
}

func TestPipelineVerifySentinel(t *testing.T) {
	m := &fakeMessenger{}
	p := newTestPipeline(m)

	state := p.Handle(context.Background(), textEvent(line.VerifyReplyToken, "u1", "m1", "ping"))
	if state != StateDiscardedVerify {
		t.Fatalf("expected discarded_verify, got %s", state)
	}
	if calls := m.snapshot(); len(calls) != 0 {
		t.Errorf("expected no calls, got %+v", calls)
	}
}

func TestPipelineSequentialDuplicate(t *testing.T) {
	m := &fakeMessenger{}
	p := newTestPipeline(m)

	if state := p.Handle(context.Background(), textEvent("t1", "u1", "m1", "ping")); state != StateSent {
		t.Fatalf("expected sent, got %s", state)
	}
	if state := p.Handle(context.Background(), textEvent("t2", "u1", "m1", "ping")); state != StateDiscardedDuplicate {
		t.Fatalf("expected discarded_duplicate, got %s", state)
	}
	if calls := m.snapshot(); len(calls) != 1 {
		t.Errorf("expected exactly one reply, got %d", len(calls))
	}
}

func TestPipelinePostbackDedupesByToken(t *testing.T) {
	m := &fakeMessenger{}
	p := newTestPipeline(m)

	ev := func() *types.InboundEvent {
		return &types.InboundEvent{
			ID:         types.NewEventID(),
			Kind:       types.KindPostback,
			ReplyToken: "pb-token",
			Source:     types.Source{Kind: types.SourceUser, UserID: "u1"},
			Postback:   &types.PostbackContent{Data: "a=x"},
		}
	}
	if state := p.Handle(context.Background(), ev()); state != StateSent {
		t.Fatalf("expected sent, got %s", state)
	}
	if state := p.Handle(context.Background(), ev()); state != StateDiscardedDuplicate {
		t.Fatalf("expected duplicate, got %s", state)
	}
}

func TestPipelineKeylessEventsNotDeduplicated(t *testing.T) {
	m := &fakeMessenger{}
	p := newTestPipeline(m, WithRedeliveryPolicy(RedeliveryPush))

	// Neither a message id nor a reply token: nothing to dedupe on.
	ev := func() *types.InboundEvent {
		return &types.InboundEvent{
			ID:         types.NewEventID(),
			Kind:       types.KindPostback,
			Redelivery: true,
			Source:     types.Source{Kind: types.SourceUser, UserID: "u1"},
			Postback:   &types.PostbackContent{Data: "a=x"},
		}
	}
	for i := 0; i < 2; i++ {
		if state := p.Handle(context.Background(), ev()); state != StateSent {
			t.Fatalf("event %d: expected sent, got %s", i, state)
		}
	}
	if calls := m.snapshot(); len(calls) != 2 {
		t.Errorf("expected two pushes, got %d", len(calls))
	}
}

func TestPipelineUnsupportedSkipped(t *testing.T) {
	m := &fakeMessenger{}
	p := newTestPipeline(m)

	ev := &types.InboundEvent{Kind: types.KindUnsupported, Type: "follow", ReplyToken: "tok"}
	if state := p.Handle(context.Background(), ev); state != StateDiscardedUnsupported {
		t.Fatalf("expected discarded_unsupported, got %s", state)
	}
	if calls := m.snapshot(); len(calls) != 0 {
		t.Errorf("expected no calls, got %+v", calls)
	}
}

func TestPipelineExpiredTokenDropped(t *testing.T) {
	m := &fakeMessenger{replyErr: &line.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid reply token"}}
	p := newTestPipeline(m)

	if state := p.Handle(context.Background(), textEvent("old", "u1", "m1", "ping")); state != StateDropped {
		t.Fatalf("expected dropped, got %s", state)
	}
	if calls := m.snapshot(); len(calls) != 1 {
		t.Errorf("expected no retry of an expired token, got %d calls", len(calls))
	}
}

func TestPipelineGuardErrorsFailOpen(t *testing.T) {
	m := &fakeMessenger{}
	d := delivery.New(m, delivery.WithBackoff(0))
	p := NewPipeline(brokenGuard{}, echoResolver(), d)

	if state := p.Handle(context.Background(), textEvent("abc", "u1", "m1", "ping")); state != StateSent {
		t.Fatalf("expected sent despite guard errors, got %s", state)
	}
}

func TestPipelineResolverPanic(t *testing.T) {
	m := &fakeMessenger{}
	d := delivery.New(m, delivery.WithBackoff(0))
	panicky := resolverFunc(func(context.Context, *types.InboundEvent) []types.OutboundMessage {
		panic("bad data")
	})
	p := NewPipeline(dedupe.NewMemory(time.Minute, 10), panicky, d)

	if state := p.Handle(context.Background(), textEvent("abc", "u1", "m1", "x")); state != StateSent {
		t.Fatalf("expected sent, got %s", state)
	}
	calls := m.snapshot()
	if txt, ok := calls[0].msgs[0].(types.TextMessage); !ok || txt.Text != resolveFailedText {
		t.Errorf("expected failure text, got %#v", calls[0].msgs[0])
	}
}

func TestPipelineResolverTimeout(t *testing.T) {
	m := &fakeMessenger{}
	d := delivery.New(m, delivery.WithBackoff(0))
	slow := resolverFunc(func(ctx context.Context, _ *types.InboundEvent) []types.OutboundMessage {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return types.Text("late")
	})
	p := NewPipeline(dedupe.NewMemory(time.Minute, 10), slow, d, WithResolveTimeout(10*time.Millisecond))

	if state := p.Handle(context.Background(), textEvent("abc", "u1", "m1", "x")); state != StateSent {
		t.Fatalf("expected sent, got %s", state)
	}
	calls := m.snapshot()
	if txt, ok := calls[0].msgs[0].(types.TextMessage); !ok || txt.Text != resolveTimeoutText {
		t.Errorf("expected timeout text, got %#v", calls[0].msgs[0])
	}
}

func TestParseRedeliveryPolicy(t *testing.T) {
	for in, want := range map[string]RedeliveryPolicy{"": RedeliveryDrop, "drop": RedeliveryDrop, "push": RedeliveryPush} {
		got, err := ParseRedeliveryPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseRedeliveryPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseRedeliveryPolicy("retry"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
