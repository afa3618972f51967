package selector

import (
	"context"
	"time"

	"nudgegate/internal/period"
	"nudgegate/internal/quota"
	"nudgegate/internal/types"
)

// boundaryGrace pads the rollover timer past the computed boundary so a fire
// that lands marginally early (clock adjustment, timer coalescing) still
// observes the new period.
const boundaryGrace = 2 * time.Second

// Runner drives period rollovers with a single-shot, self-rescheduling timer.
// Durability comes from the persisted reservation and queue state, not from
// timer survival: CheckNow re-derives "are we past the boundary" from the
// clock and persisted state, and Run invokes it at startup before arming the
// first timer.
type Runner struct {
	clock    types.Clock
	quota    *quota.Store
	selector *Selector
	log      types.Logger
}

// NewRunner creates a rollover runner.
func NewRunner(clock types.Clock, q *quota.Store, s *Selector, log types.Logger) *Runner {
	return &Runner{clock: clock, quota: q, selector: s, log: log}
}

// CheckNow performs one rollover pass: reset a stale reservation if the
// period has rolled, then give the Smart Selector a chance to promote the
// best deferred entry. Safe to call from any entry point (startup, explicit
// refresh, fired timer).
func (r *Runner) CheckNow(ctx context.Context) {
	now := r.clock.Now()
	rolled, err := r.quota.ResetIfRolledOver(ctx, now)
	if err != nil {
		r.log.Error("rollover reset failed", "error", err.Error())
	}
	if rolled {
		r.log.Info("period rolled over", "period", period.Of(now).String())
	}
	// Promotion is attempted opportunistically even without a rollover: the
	// queue may hold entries while the slot is open (e.g. after a restart
	// that interrupted an earlier promotion). A still-claimed slot simply
	// re-defers the winner.
	r.selector.PromoteBest(ctx)
}

// Run blocks until ctx is cancelled, firing CheckNow at startup and at every
// period boundary. Each timer is single-shot and reschedules itself for the
// following boundary.
func (r *Runner) Run(ctx context.Context) error {
	r.CheckNow(ctx)

	for {
		now := r.clock.Now()
		next := period.NextBoundary(now)
		wait := next.Sub(now) + boundaryGrace
		r.log.Info("rollover timer armed", "boundary", next.Format(time.RFC3339), "wait", wait.String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.CheckNow(ctx)
		}
	}
}
