// Package scheduler pushes the day's stored notifications at fixed daily
// slots.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/minhducle291/linebot/internal/state"
	"github.com/minhducle291/linebot/internal/types"
)

// DefaultSlots are the daily send times used when none are configured.
var DefaultSlots = []string{"05:30", "07:00"}

const pushTimeout = 30 * time.Second

// Pusher sends messages to a user without a reply token.
type Pusher interface {
	Push(ctx context.Context, to string, messages []types.OutboundMessage) error
}

// Scheduler fires SendDue at each configured slot in its time zone.
type Scheduler struct {
	store  *state.NotificationStore
	pusher Pusher
	loc    *time.Location
	slots  []string
	cron   *cron.Cron
	now    func() time.Time
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler. A slot is either "HH:MM" or a cron expression.
// A nil loc means UTC.
func New(store *state.NotificationStore, pusher Pusher, loc *time.Location, slots []string) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if len(slots) == 0 {
		slots = DefaultSlots
	}
	return &Scheduler{
		store:  store,
		pusher: pusher,
		loc:    loc,
		slots:  slots,
		cron:   newCron(loc),
		now:    time.Now,
	}
}

func newCron(loc *time.Location) *cron.Cron {
	return cron.New(cron.WithParser(cronParser), cron.WithLocation(loc))
}

// SlotSpec turns "HH:MM" into a daily cron spec. Anything that does not
// look like a clock time is validated as a cron expression.
func SlotSpec(slot string) (string, error) {
	slot = strings.TrimSpace(slot)
	if h, m, ok := strings.Cut(slot, ":"); ok && !strings.Contains(slot, " ") {
		hour, herr := strconv.Atoi(h)
		minute, merr := strconv.Atoi(m)
		if herr != nil || merr != nil {
			return "", fmt.Errorf("invalid slot %q", slot)
		}
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return "", fmt.Errorf("slot out of range %q", slot)
		}
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	}
	if _, err := cronParser.Parse(slot); err != nil {
		return "", fmt.Errorf("invalid slot %q: %w", slot, err)
	}
	return slot, nil
}

// Start registers every valid slot and starts the cron ticker. Invalid
// slots are logged and skipped; it returns the number registered.
func (s *Scheduler) Start() int {
	registered := 0
	for i, slot := range s.slots {
		spec, err := SlotSpec(slot)
		if err != nil {
			slog.Error("skipping schedule slot", "slot", slot, "error", err)
			continue
		}
		id := fmt.Sprintf("slot_%d", i+1)
		if _, err := s.cron.AddFunc(spec, func() {
			slog.Info("schedule slot firing", "slot", slot, "id", id)
			s.SendDue(context.Background())
		}); err != nil {
			slog.Error("registering schedule slot failed", "slot", slot, "error", err)
			continue
		}
		registered++
		slog.Info("scheduled slot", "slot", slot, "spec", spec, "tz", s.loc.String(), "id", id)
	}
	s.cron.Start()
	return registered
}

// Reload stops the existing cron, creates a new one, and calls Start() again.
func (s *Scheduler) Reload() int {
	s.cron.Stop()
	s.cron = newCron(s.loc)
	return s.Start()
}

// Stop stops the cron ticker and waits for a running slot to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// SendDue pushes every notification dated today in the scheduler's zone.
// Per-row push failures are logged and counted, never fatal.
func (s *Scheduler) SendDue(ctx context.Context) (sent, failed int) {
	today := s.now().In(s.loc)
	due, err := s.store.DueOn(today)
	if err != nil {
		slog.Error("reading notifications failed", "path", s.store.Path(), "error", err)
		return 0, 0
	}
	if len(due) == 0 {
		slog.Info("no notifications due", "date", today.Format(state.DateLayout))
		return 0, 0
	}

	for _, n := range due {
		pctx, cancel := context.WithTimeout(ctx, pushTimeout)
		err := s.pusher.Push(pctx, n.UserID, types.Text(n.Content))
		cancel()
		if err != nil {
			failed++
			slog.Error("scheduled push failed", "notification_id", n.ID, "error", err)
			continue
		}
		sent++
	}
	slog.Info("scheduled pushes done", "date", today.Format(state.DateLayout), "sent", sent, "failed", failed)
	return sent, failed
}
