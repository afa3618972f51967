// Package delivery provides the in-process delivery service used when no
// platform notification center is attached: it keeps the pending set in
// memory, honors the replace-by-id contract, and fires due items through an
// optional callback.
package delivery

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nudgegate/internal/types"
)

// FireFunc receives a notification when its trigger elapses. The message id is
// generated per firing, not per scheduling, so a replaced item fires with a
// fresh id.
type FireFunc func(msgID string, id string, content types.NotificationContent)

// Memory is an in-process types.DeliveryService. Add with an existing id
// atomically replaces the prior item; items with a nil trigger are due
// immediately.
type Memory struct {
	mu     sync.Mutex
	items  map[string]*pendingItem
	auth   types.AuthorizationStatus
	fire   FireFunc
	clock  types.Clock
	log    types.Logger
	closed bool
}

type pendingItem struct {
	content types.NotificationContent
	trigger types.CanonicalTrigger
	added   time.Time
	timer   *time.Timer
}

// Option configures a Memory service.
type Option func(*Memory)

// WithFireFunc installs the callback invoked when a pending item's trigger
// elapses. Without it, due items simply leave the pending set.
func WithFireFunc(f FireFunc) Option {
	return func(m *Memory) { m.fire = f }
}

// WithAuthorizationStatus overrides the reported authorization status.
func WithAuthorizationStatus(s types.AuthorizationStatus) Option {
	return func(m *Memory) { m.auth = s }
}

// NewMemory creates an in-process delivery service. Authorization defaults to
// granted.
func NewMemory(clock types.Clock, log types.Logger, opts ...Option) *Memory {
	m := &Memory{
		items: map[string]*pendingItem{},
		auth:  types.AuthorizationGranted,
		clock: clock,
		log:   log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ types.DeliveryService = (*Memory)(nil)

// Add schedules or replaces the item with the given id.
func (m *Memory) Add(_ context.Context, id string, content types.NotificationContent, trigger types.CanonicalTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return types.NewAppError(types.ErrCodeDeliveryUnavailable, "delivery service closed", nil)
	}

	if prev, ok := m.items[id]; ok && prev.timer != nil {
		prev.timer.Stop()
	}

	item := &pendingItem{content: content, trigger: trigger, added: m.clock.Now()}
	m.items[id] = item

	delay := time.Duration(0)
	if trigger.At != nil {
		if d := trigger.At.Sub(m.clock.Now()); d > 0 {
			delay = d
		}
	}
	item.timer = time.AfterFunc(delay, func() { m.fireItem(id) })
	return nil
}

// Remove drops the given ids from the pending set. Unknown ids are ignored.
func (m *Memory) Remove(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			if it.timer != nil {
				it.timer.Stop()
			}
			delete(m.items, id)
		}
	}
	return nil
}

// ListPending returns the current pending set ordered by scheduling time.
func (m *Memory) ListPending(context.Context) ([]types.ScheduledItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.ScheduledItem, 0, len(m.items))
	for id, it := range m.items {
		var next *time.Time
		if it.trigger.At != nil {
			at := *it.trigger.At
			next = &at
		}
		out = append(out, types.ScheduledItem{
			ID:          id,
			NextTrigger: next,
			Metadata:    it.content.Metadata,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return m.items[out[i].ID].added.Before(m.items[out[j].ID].added)
	})
	return out, nil
}

// AuthorizationStatus reports the configured status.
func (m *Memory) AuthorizationStatus(context.Context) (types.AuthorizationStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth, nil
}

// Close stops all armed timers. Subsequent Adds fail.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for _, it := range m.items {
		if it.timer != nil {
			it.timer.Stop()
		}
	}
}

func (m *Memory) fireItem(id string) {
	m.mu.Lock()
	it, ok := m.items[id]
	if !ok || m.closed {
		m.mu.Unlock()
		return
	}
	delete(m.items, id)
	fire := m.fire
	content := it.content
	m.mu.Unlock()

	msgID := uuid.NewString()
	m.log.Info("notification fired", "msg_id", msgID, "id", id)
	if fire != nil {
		fire(msgID, id, content)
	}
}
