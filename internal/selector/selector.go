// Package selector resurrects deferred requests: at each period rollover it
// picks the single best entry from the deferred queue and attempts admission
// for the newly opened period.
package selector

import (
	"context"
	"sort"

	"nudgegate/internal/admission"
	"nudgegate/internal/queue"
	"nudgegate/internal/types"
)

// categoryRank is the fixed tie-break order: lower rank wins when priorities
// are equal.
var categoryRank = map[types.Category]int{
	types.CategoryChallengeReminder: 0,
	types.CategoryStreakReminder:    1,
	types.CategoryTeamSocial:        2,
	types.CategoryLeaderboard:       3,
	types.CategoryOther:             4,
}

// rankOf returns the tie-break rank for a category; unknown categories sort
// with CategoryOther.
func rankOf(c types.Category) int {
	if r, ok := categoryRank[c]; ok {
		return r
	}
	return categoryRank[types.CategoryOther]
}

// Selector drains the deferred queue and promotes the winner through the
// Admission Controller.
type Selector struct {
	ctrl  *admission.Controller
	queue *queue.Deferred
	log   types.Logger
}

// New creates a Selector.
func New(ctrl *admission.Controller, dq *queue.Deferred, log types.Logger) *Selector {
	return &Selector{ctrl: ctrl, queue: dq, log: log}
}

// PromoteBest sorts the deferred queue by (priority desc, category rank asc,
// queued-at asc) and attempts admission for exactly the top entry. On a
// scheduled outcome the entire queue is cleared: dropping the remainder
// instead of carrying it forward indefinitely is deliberate policy, the
// remaining producers re-request on their own cadence. Returns nil when the
// queue is empty.
func (s *Selector) PromoteBest(ctx context.Context) *admission.Outcome {
	entries := s.queue.Entries(ctx)
	if len(entries) == 0 {
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Request.Priority != b.Request.Priority {
			return a.Request.Priority > b.Request.Priority
		}
		ra, rb := rankOf(a.Request.Category), rankOf(b.Request.Category)
		if ra != rb {
			return ra < rb
		}
		return a.QueuedAt.Before(b.QueuedAt)
	})

	best := entries[0].Request
	out := s.ctrl.Request(ctx, best)
	switch out.Kind {
	case types.OutcomeScheduled:
		if err := s.queue.Clear(ctx); err != nil {
			s.log.Error("deferred queue clear failed after promotion", "error", err.Error())
		}
		s.log.Info("deferred request promoted",
			"id", best.ID, "period", out.Period.String(), "dropped", len(entries)-1)
	case types.OutcomeDeferred:
		s.log.Info("promotion deferred again, slot still claimed", "id", best.ID)
	case types.OutcomeRejected:
		s.log.Warn("promotion rejected", "id", best.ID, "reason", out.Reason)
	}
	return &out
}
