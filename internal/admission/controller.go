// Package admission implements the component producers actually call: the
// race-free reserve -> submit -> (rollback on failure) sequence against the
// quota store and the external delivery service.
package admission

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"nudgegate/internal/period"
	"nudgegate/internal/policy"
	"nudgegate/internal/queue"
	"nudgegate/internal/quota"
	"nudgegate/internal/types"
)

// Outcome is the terminal result of one admission attempt. Reservation and
// queue failures are absorbed internally; Err is populated only for
// OutcomeRejected and is the only error surface of Request.
type Outcome struct {
	Kind   types.OutcomeKind `json:"kind"`
	Period period.Key        `json:"period"`
	// FireAt is the canonical fire time for scheduled outcomes; nil means
	// fire ASAP.
	FireAt *time.Time `json:"fire_at,omitempty"`
	// Reason is a short human-readable explanation for deferred and rejected
	// outcomes.
	Reason string `json:"reason,omitempty"`
	// Err carries the rejection cause. Callers may retry a rejected request
	// by re-requesting; re-requests are idempotent by id.
	Err error `json:"-"`
}

// Controller orchestrates admission. All mutation of the quota store and the
// deferred queue runs under one mutex: two producers racing for the same
// period can never both observe an open reservation and both claim it.
type Controller struct {
	mu sync.Mutex

	quota    *quota.Store
	queue    *queue.Deferred
	resolver *policy.Resolver
	delivery types.DeliveryService
	prefs    types.PreferencesProvider
	clock    types.Clock
	log      types.Logger

	// breaker guards the external delivery service's Add call. A submission
	// rejected by an open breaker rolls back the reservation exactly like a
	// service error.
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewController wires an admission controller.
func NewController(
	q *quota.Store,
	dq *queue.Deferred,
	resolver *policy.Resolver,
	delivery types.DeliveryService,
	prefs types.PreferencesProvider,
	clock types.Clock,
	log types.Logger,
) *Controller {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "delivery-submit",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &Controller{
		quota:    q,
		queue:    dq,
		resolver: resolver,
		delivery: delivery,
		prefs:    prefs,
		clock:    clock,
		log:      log,
		breaker:  cb,
	}
}

// Request admits, defers, or rejects a notification-scheduling request.
//
// Sequence: pre-checks (category, authorization) -> resolve canonical trigger
// and period -> reserve -> submit -> keep reservation, or roll it back on
// submission failure. A denied reservation parks the request in the deferred
// queue; that path returns OutcomeDeferred and is not an error.
func (c *Controller) Request(ctx context.Context, req types.ScheduleRequest) Outcome {
	if err := req.Validate(); err != nil {
		return rejected(period.Key{}, err)
	}

	if !c.prefs.CategoryEnabled(req.Category) {
		return rejected(period.Key{}, types.NewAppError(types.ErrCodeAdmissionCategoryDisabled,
			"category disabled by preferences: "+string(req.Category), nil))
	}

	status, err := c.delivery.AuthorizationStatus(ctx)
	if err != nil || status != types.AuthorizationGranted {
		return rejected(period.Key{}, types.NewAppError(types.ErrCodeAdmissionUnauthorized,
			"notification delivery is not authorized", err))
	}

	now := c.clock.Now()
	res := c.resolver.Resolve(req.Trigger, req.Policy, now)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-requesting an id that is already pending replaces the prior item
	// in place under the existing claim; the delivery service's Add contract
	// makes the replace atomic. No new reservation is taken.
	if c.isPending(ctx, req.ID) {
		if err := c.submit(ctx, req, res); err != nil {
			return rejected(res.Period, err)
		}
		c.log.Info("pending notification replaced", "id", req.ID, "period", res.Period.String())
		return Outcome{Kind: types.OutcomeScheduled, Period: res.Period, FireAt: res.FireAt()}
	}

	ok, err := c.quota.TryReserve(ctx, res.Period)
	if err != nil {
		// Persistence trouble on the reservation path degrades to a deferral:
		// nothing here may crash the host, and the rollover pass will retry.
		c.log.Error("reservation failed, deferring request", "id", req.ID, "error", err.Error())
		ok = false
	}
	if !ok {
		if err := c.queue.Push(ctx, req, now); err != nil {
			c.log.Error("deferred queue push failed", "id", req.ID, "error", err.Error())
		}
		return Outcome{
			Kind:   types.OutcomeDeferred,
			Period: res.Period,
			Reason: "delivery slot for period " + res.Period.String() + " is already claimed",
		}
	}

	if err := c.submit(ctx, req, res); err != nil {
		// Roll back so the slot is not consumed by a notification that never
		// made it into the delivery service. The request is not auto-requeued
		// on this path; callers may re-request.
		if rerr := c.quota.Release(ctx, res.Period); rerr != nil {
			c.log.Error("reservation rollback failed", "id", req.ID, "error", rerr.Error())
		}
		return rejected(res.Period, err)
	}

	c.log.Info("notification scheduled",
		"id", req.ID, "category", string(req.Category), "period", res.Period.String())
	return Outcome{Kind: types.OutcomeScheduled, Period: res.Period, FireAt: res.FireAt()}
}

// Cancel removes the pending item and any deferred entry with the given id.
// The period's claim, if already spent on this id, stays spent: the cap
// counts admissions, not deliveries.
func (c *Controller) Cancel(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.delivery.Remove(ctx, id); err != nil {
		return types.NewAppError(types.ErrCodeDeliveryUnavailable, "cancel "+id, err)
	}
	return c.queue.Remove(ctx, id)
}

// CancelAll removes every pending item and clears the deferred queue.
func (c *Controller) CancelAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.delivery.ListPending(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeDeliveryUnavailable, "list pending", err)
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if len(ids) > 0 {
		if err := c.delivery.Remove(ctx, ids...); err != nil {
			return types.NewAppError(types.ErrCodeDeliveryUnavailable, "cancel all", err)
		}
	}
	return c.queue.Clear(ctx)
}

// RefreshPending resyncs with the delivery service's current list. It also
// re-derives "have we crossed a period boundary" from the wall clock, so a
// restarted process recovers without a surviving timer.
func (c *Controller) RefreshPending(ctx context.Context) ([]types.ScheduledItem, error) {
	if _, err := c.quota.ResetIfRolledOver(ctx, c.clock.Now()); err != nil {
		c.log.Error("rollover check failed during refresh", "error", err.Error())
	}
	items, err := c.delivery.ListPending(ctx)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeDeliveryUnavailable, "list pending", err)
	}
	return items, nil
}

// QueueDepth exposes the deferred queue depth for diagnostics.
func (c *Controller) QueueDepth(ctx context.Context) int {
	return c.queue.Len(ctx)
}

func (c *Controller) isPending(ctx context.Context, id string) bool {
	items, err := c.delivery.ListPending(ctx)
	if err != nil {
		// Unknown pending state reads as "not pending": the reserve path is
		// the safe default.
		c.log.Warn("pending list unavailable during admission", "error", err.Error())
		return false
	}
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func (c *Controller) submit(ctx context.Context, req types.ScheduleRequest, res policy.Resolution) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.delivery.Add(ctx, req.ID, req.Content(), res.Trigger)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeDeliveryUnavailable,
			"delivery service temporarily unavailable", err)
	}
	return types.NewAppError(types.ErrCodeSubmissionFailed,
		"delivery service rejected submission for "+req.ID, err)
}

func rejected(p period.Key, err error) Outcome {
	out := Outcome{Kind: types.OutcomeRejected, Period: p, Err: err}
	if err != nil {
		out.Reason = err.Error()
	}
	return out
}
