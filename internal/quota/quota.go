// Package quota owns the durable period reservation: which calendar period
// currently holds the delivery slot and how much of the cap it has consumed.
// All mutation is serialized behind one mutex; the Admission Controller and
// Smart Selector are the only writers.
package quota

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nudgegate/internal/period"
	"nudgegate/internal/store"
	"nudgegate/internal/types"
)

// reservationKey is the kv key holding the serialized Reservation.
const reservationKey = "quota/reservation"

// Reservation records the period currently holding a claim on the delivery
// slot. Invariants: at most one period is active (ClaimedCount > 0) at a
// time; ClaimedCount never exceeds the cap.
type Reservation struct {
	Period       period.Key `json:"period"`
	ClaimedCount int        `json:"claimed_count"`
}

// Active reports whether the reservation currently holds a claim.
func (r Reservation) Active() bool { return r.ClaimedCount > 0 }

// PendingLister is the narrow slice of the delivery service the quota store
// needs: Release must cross-check the currently-pending set so it never clears
// a slot that is still in use.
type PendingLister interface {
	ListPending(ctx context.Context) ([]types.ScheduledItem, error)
}

// Store is the durable, mutex-guarded reservation record.
type Store struct {
	mu      sync.Mutex
	kv      store.Store
	pending PendingLister
	cap     int
	log     types.Logger
}

// New creates a quota store with the given cap. cap values below 1 are
// clamped to 1.
func New(kv store.Store, pending PendingLister, cap int, log types.Logger) *Store {
	if cap < 1 {
		cap = 1
	}
	return &Store{kv: kv, pending: pending, cap: cap, log: log}
}

// Cap returns the per-period delivery cap.
func (s *Store) Cap() int { return s.cap }

// TryReserve atomically claims the delivery slot for key. It succeeds only
// when no other period holds a non-zero claim, or when key itself holds the
// claim with count still below the cap. On success the slot is consumed whole
// (ClaimedCount is set to the cap): the observed cap in this system is 1 and
// the slot is not claimed incrementally.
func (s *Store) TryReserve(ctx context.Context, key period.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.loadLocked(ctx)
	if cur.Active() {
		if cur.Period != key {
			return false, nil
		}
		if cur.ClaimedCount >= s.cap {
			return false, nil
		}
	}

	cur.Period = key
	cur.ClaimedCount = s.cap
	if err := s.saveLocked(ctx, cur); err != nil {
		return false, err
	}
	return true, nil
}

// Release clears the claim for key, but only when no currently-pending item
// in the delivery service still targets that period. This guard prevents a
// rollback path from freeing a slot that a live scheduled item is using.
func (s *Store) Release(ctx context.Context, key period.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.loadLocked(ctx)
	if !cur.Active() || cur.Period != key {
		return nil
	}

	items, err := s.pending.ListPending(ctx)
	if err != nil {
		// Without a pending snapshot we cannot prove the slot is unused;
		// keep the claim. The next rollover reset will recover it.
		s.log.Warn("release skipped: pending list unavailable", "period", key.String(), "error", err.Error())
		return nil
	}
	for _, it := range items {
		if it.NextTrigger != nil && key.Contains(*it.NextTrigger) {
			s.log.Warn("release skipped: scheduled item still targets period",
				"period", key.String(), "item_id", it.ID)
			return nil
		}
	}

	cur.ClaimedCount = 0
	return s.saveLocked(ctx, cur)
}

// ResetIfRolledOver zeroes the claim when the stored period is strictly
// before the period containing now. The Period field is left in place for the
// next explicit reservation to overwrite. It returns true when a reset
// happened.
func (s *Store) ResetIfRolledOver(ctx context.Context, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.loadLocked(ctx)
	if !cur.Active() || !cur.Period.Before(period.Of(now)) {
		return false, nil
	}

	cur.ClaimedCount = 0
	if err := s.saveLocked(ctx, cur); err != nil {
		return false, err
	}
	s.log.Info("reservation reset at period rollover",
		"stale_period", cur.Period.String(), "current_period", period.Of(now).String())
	return true, nil
}

// Snapshot returns the current reservation for diagnostics.
func (s *Store) Snapshot(ctx context.Context) Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// loadLocked reads the persisted reservation. Missing or corrupt state is
// treated as "no reservation" so a wedged flag can never permanently silence
// notifications (fail-open).
func (s *Store) loadLocked(ctx context.Context) Reservation {
	raw, ok, err := s.kv.Get(ctx, reservationKey)
	if err != nil {
		s.log.Warn("reservation read failed, treating as empty", "error", err.Error())
		return Reservation{}
	}
	if !ok {
		return Reservation{}
	}
	var r Reservation
	if err := json.Unmarshal(raw, &r); err != nil {
		s.log.Warn("reservation state corrupt, treating as empty",
			"code", string(types.ErrCodePersistenceCorrupt), "error", err.Error())
		return Reservation{}
	}
	// A count above the cap (left by an earlier version with a different
	// cap) is preserved as-is: TryReserve treats it as a full slot and the
	// Compliance Auditor reports it as a violation.
	return r
}

func (s *Store) saveLocked(ctx context.Context, r Reservation) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return types.NewAppError(types.ErrCodePersistence, "encode reservation", err)
	}
	if err := s.kv.Set(ctx, reservationKey, raw); err != nil {
		return types.NewAppError(types.ErrCodePersistence, "persist reservation", err)
	}
	return nil
}
