package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minhducle291/linebot/internal/state"
	"github.com/minhducle291/linebot/internal/types"
)

type recordingPusher struct {
	mu    sync.Mutex
	to    []string
	fail  map[string]bool
	calls atomic.Int32
}

func (p *recordingPusher) Push(_ context.Context, to string, msgs []types.OutboundMessage) error {
	p.calls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[to] {
		return errors.New("push rejected")
	}
	p.to = append(p.to, to)
	return nil
}

func seededStore(t *testing.T, items ...*state.Notification) *state.NotificationStore {
	t.Helper()
	store := state.NewNotificationStore(filepath.Join(t.TempDir(), "notifications.json"))
	for _, n := range items {
		if err := store.Add(n); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestSlotSpec(t *testing.T) {
	cases := []struct{ in, want string }{
		{"05:30", "30 5 * * *"},
		{"7:00", "0 7 * * *"},
		{" 23:59 ", "59 23 * * *"},
		{"* * * * * *", "* * * * * *"},
		{"@every 1h", "@every 1h"},
	}
	for _, c := range cases {
		got, err := SlotSpec(c.in)
		if err != nil || got != c.want {
			t.Errorf("SlotSpec(%q) = %q, %v; want %q", c.in, got, err, c.want)
		}
	}
	for _, bad := range []string{"24:00", "12:60", "ab:cd", "not a cron", ""} {
		if _, err := SlotSpec(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestSendDue(t *testing.T) {
	store := seededStore(t,
		&state.Notification{UserID: "U1", SendDate: "2026-10-14", Content: "today"},
		&state.Notification{UserID: "U2", SendDate: "2026-10-14", Content: "today"},
		&state.Notification{UserID: "U3", SendDate: "2026-10-13", Content: "yesterday"},
	)
	pusher := &recordingPusher{fail: map[string]bool{"U2": true}}

	loc := time.FixedZone("ICT", 7*3600)
	s := New(store, pusher, loc, nil)
	// 23:30 UTC on the 13th is already the 14th in UTC+7.
	s.now = func() time.Time { return time.Date(2026, 10, 13, 23, 30, 0, 0, time.UTC) }

	sent, failed := s.SendDue(context.Background())
	if sent != 1 || failed != 1 {
		t.Errorf("expected 1 sent and 1 failed, got %d and %d", sent, failed)
	}
	if len(pusher.to) != 1 || pusher.to[0] != "U1" {
		t.Errorf("unexpected push targets %v", pusher.to)
	}
}

func TestSendDueNothing(t *testing.T) {
	pusher := &recordingPusher{}
	s := New(seededStore(t), pusher, nil, nil)
	if sent, failed := s.SendDue(context.Background()); sent != 0 || failed != 0 {
		t.Errorf("expected nothing sent, got %d/%d", sent, failed)
	}
}

func TestStartSkipsInvalidSlots(t *testing.T) {
	s := New(seededStore(t), &recordingPusher{}, nil, []string{"05:30", "25:00", "07:00"})
	defer s.Stop()
	if n := s.Start(); n != 2 {
		t.Errorf("expected 2 registered slots, got %d", n)
	}
	if n := s.Reload(); n != 2 {
		t.Errorf("expected 2 slots after reload, got %d", n)
	}
}

func TestSchedulerFiresSlot(t *testing.T) {
	store := seededStore(t, &state.Notification{UserID: "U1", SendDate: time.Now().Format(state.DateLayout), Content: "hello"})
	pusher := &recordingPusher{}

	s := New(store, pusher, time.Local, []string{"* * * * * *"})
	s.Start()
	defer s.Stop()

	// Wait up to 2.5 seconds for at least one fire
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("slot did not fire within 2.5s, calls=%d", pusher.calls.Load())
		case <-ticker.C:
			if pusher.calls.Load() > 0 {
				return
			}
		}
	}
}
