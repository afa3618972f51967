// Package queue implements the bounded, durable deferred queue: requests
// that lost the admission race for their target period wait here until the
// Smart Selector consumes one at the next rollover or FIFO overflow evicts
// them.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nudgegate/internal/store"
	"nudgegate/internal/types"
)

// deferredKey is the kv key holding the serialized entry list.
const deferredKey = "queue/deferred"

// DefaultCapacity bounds the queue when no explicit capacity is configured.
const DefaultCapacity = 25

// Entry wraps a deferred ScheduleRequest with the time it was queued.
type Entry struct {
	Request  types.ScheduleRequest `json:"request"`
	QueuedAt time.Time             `json:"queued_at"`
}

// Deferred is the durable FIFO queue. Insertion by id replaces an existing
// entry with the same id (idempotent re-queue) instead of duplicating; when
// the queue is full the oldest entry is evicted.
type Deferred struct {
	mu       sync.Mutex
	kv       store.Store
	capacity int
	log      types.Logger
}

// New creates a deferred queue bounded at capacity. Values below 1 fall back
// to DefaultCapacity.
func New(kv store.Store, capacity int, log types.Logger) *Deferred {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Deferred{kv: kv, capacity: capacity, log: log}
}

// Push queues the request, replacing any existing entry with the same id.
// A replacement keeps the entry's queue position and refreshes QueuedAt.
func (q *Deferred) Push(ctx context.Context, req types.ScheduleRequest, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.loadLocked(ctx)
	replaced := false
	for i := range entries {
		if entries[i].Request.ID == req.ID {
			entries[i] = Entry{Request: req, QueuedAt: now}
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, Entry{Request: req, QueuedAt: now})
	}
	for len(entries) > q.capacity {
		evicted := entries[0]
		entries = entries[1:]
		q.log.Warn("deferred queue overflow, evicting oldest entry",
			"evicted_id", evicted.Request.ID, "capacity", q.capacity)
	}
	return q.saveLocked(ctx, entries)
}

// Entries returns a snapshot of the queue in FIFO order.
func (q *Deferred) Entries(ctx context.Context) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loadLocked(ctx)
}

// Len returns the current queue depth.
func (q *Deferred) Len(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.loadLocked(ctx))
}

// Remove deletes the entry with the given id, if present.
func (q *Deferred) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.loadLocked(ctx)
	kept := entries[:0]
	for _, e := range entries {
		if e.Request.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return q.saveLocked(ctx, kept)
}

// Clear empties the queue. The Smart Selector calls this after a successful
// promotion: dropping the remainder instead of carrying it forward
// indefinitely is deliberate policy.
func (q *Deferred) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.saveLocked(ctx, nil)
}

// loadLocked reads the persisted entry list. Missing or corrupt state reads
// as empty: a bad row must never wedge admission.
func (q *Deferred) loadLocked(ctx context.Context) []Entry {
	raw, ok, err := q.kv.Get(ctx, deferredKey)
	if err != nil {
		q.log.Warn("deferred queue read failed, treating as empty", "error", err.Error())
		return nil
	}
	if !ok {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		q.log.Warn("deferred queue state corrupt, treating as empty",
			"code", string(types.ErrCodePersistenceCorrupt), "error", err.Error())
		return nil
	}
	return entries
}

func (q *Deferred) saveLocked(ctx context.Context, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return types.NewAppError(types.ErrCodePersistence, "encode deferred queue", err)
	}
	if err := q.kv.Set(ctx, deferredKey, raw); err != nil {
		return types.NewAppError(types.ErrCodePersistence, "persist deferred queue", err)
	}
	return nil
}
