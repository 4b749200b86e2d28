// Package dedupe suppresses re-processing of events already handled within
// a retention window.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/minhducle291/linebot/internal/types"
)

// Guard is the dedupe capability the pipeline depends on. Implementations
// may be process-local or shared.
type Guard interface {
	// Contains reports whether key was added within the retention window.
	Contains(ctx context.Context, key string) (bool, error)
	// Add records key as handled now.
	Add(ctx context.Context, key string) error
}

// Key derives the dedupe key of an event: the platform message id when
// present, otherwise the reply token. It is "" when the event carries
// neither; such events are not deduplicated.
func Key(event *types.InboundEvent) string {
	if id := event.MessageID(); id != "" {
		return "msg:" + id
	}
	if event.ReplyToken != "" {
		return "rtok:" + event.ReplyToken
	}
	return ""
}

type entry struct {
	key string
	at  time.Time
}

// Memory is a TTL- and size-bounded set kept in touch order. Eviction is
// lazy: it happens on the next Add, there is no background sweep.
//
// Contains and Add are separate critical sections, so two workers handling
// the same key at the same moment may both see it as new. That window is
// accepted; closing it would serialize all event processing.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	max   int
	order *list.List // front is the least recently touched
	items map[string]*list.Element
	now   func() time.Time
}

// NewMemory creates a Memory guard. Non-positive arguments fall back to
// 5 minutes and 5000 entries.
func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 5000
	}
	return &Memory{
		ttl:   ttl,
		max:   maxEntries,
		order: list.New(),
		items: make(map[string]*list.Element),
		now:   time.Now,
	}
}

var _ Guard = (*Memory)(nil)

// Contains reports whether key was added within the last TTL.
func (m *Memory) Contains(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return false, nil
	}
	return m.now().Sub(el.Value.(*entry).at) <= m.ttl, nil
}

// Add records key with the current time, moving it to the most recently
// touched end, then evicts from the other end while the set is over
// capacity or its oldest entry has outlived the TTL.
func (m *Memory) Add(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if el, ok := m.items[key]; ok {
		el.Value.(*entry).at = now
		m.order.MoveToBack(el)
	} else {
		m.items[key] = m.order.PushBack(&entry{key: key, at: now})
	}

	for m.order.Len() > 0 {
		front := m.order.Front()
		e := front.Value.(*entry)
		if m.order.Len() <= m.max && now.Sub(e.at) <= m.ttl {
			break
		}
		m.order.Remove(front)
		delete(m.items, e.key)
	}
	return nil
}

// Len returns the number of retained entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
