// Package audit produces read-only compliance reports over the live pending
// set, the reservation record, and the deferred queue. The auditor never
// mutates state: findings are reported, not repaired.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nudgegate/internal/period"
	"nudgegate/internal/policy"
	"nudgegate/internal/queue"
	"nudgegate/internal/quota"
	"nudgegate/internal/types"
)

// ItemFinding is the per-item verdict of one audit pass.
type ItemFinding struct {
	ID          string               `json:"id"`
	Policy      types.DeliveryPolicy `json:"policy"`
	Tagged      bool                 `json:"tagged"`
	NextTrigger *time.Time           `json:"next_trigger,omitempty"`
	Repeats     bool                 `json:"repeats"`
	Compliant   bool                 `json:"compliant"`
	Reasons     []string             `json:"reasons,omitempty"`
}

// Report is the output of one audit pass.
type Report struct {
	ID           string            `json:"id"`
	GeneratedAt  time.Time         `json:"generated_at"`
	Cap          int               `json:"cap"`
	Reservation  quota.Reservation `json:"reservation"`
	PendingCount int               `json:"pending_count"`
	QueueDepth   int               `json:"queue_depth"`
	Items        []ItemFinding     `json:"items"`
	// Violations aggregates system-level findings not attributable to a
	// single item.
	Violations []string `json:"violations,omitempty"`
}

// Compliant reports whether the pass found no violations at all.
func (r Report) Compliant() bool {
	if len(r.Violations) > 0 {
		return false
	}
	for _, it := range r.Items {
		if !it.Compliant {
			return false
		}
	}
	return true
}

// Auditor inspects the system's externally visible state against the delivery
// rules.
type Auditor struct {
	delivery types.DeliveryService
	quota    *quota.Store
	queue    *queue.Deferred
	cfg      policy.Config
	clock    types.Clock
	log      types.Logger
}

// New creates an Auditor.
func New(delivery types.DeliveryService, q *quota.Store, dq *queue.Deferred, cfg policy.Config, clock types.Clock, log types.Logger) *Auditor {
	return &Auditor{delivery: delivery, quota: q, queue: dq, cfg: cfg, clock: clock, log: log}
}

// GenerateReport runs one audit pass.
func (a *Auditor) GenerateReport(ctx context.Context) (Report, error) {
	items, err := a.delivery.ListPending(ctx)
	if err != nil {
		return Report{}, types.NewAppError(types.ErrCodeDeliveryUnavailable, "audit: list pending", err)
	}

	rep := Report{
		ID:           uuid.NewString(),
		GeneratedAt:  a.clock.Now(),
		Cap:          a.quota.Cap(),
		Reservation:  a.quota.Snapshot(ctx),
		PendingCount: len(items),
		QueueDepth:   a.queue.Len(ctx),
		Items:        make([]ItemFinding, 0, len(items)),
	}

	perPeriod := map[period.Key]int{}
	claimTargeted := false

	for _, it := range items {
		f := a.auditItem(it)
		rep.Items = append(rep.Items, f)

		if it.NextTrigger != nil {
			key := period.Of(*it.NextTrigger)
			perPeriod[key]++
			if key == rep.Reservation.Period {
				claimTargeted = true
			}
		} else {
			// An ASAP item belongs to the current period.
			if period.Of(rep.GeneratedAt) == rep.Reservation.Period {
				claimTargeted = true
			}
		}
	}

	for key, n := range perPeriod {
		if n > rep.Cap {
			rep.Violations = append(rep.Violations,
				fmt.Sprintf("period %s holds %d pending deliveries, cap is %d", key.String(), n, rep.Cap))
		}
	}

	if rep.Reservation.ClaimedCount > rep.Cap {
		rep.Violations = append(rep.Violations,
			fmt.Sprintf("reservation claims %d, cap is %d", rep.Reservation.ClaimedCount, rep.Cap))
	}

	// A claim with nothing pending against it is the signature of a crash
	// between reserve and submit. The rollover pass recovers the slot; the
	// audit only surfaces it.
	if rep.Reservation.Active() && !claimTargeted {
		rep.Violations = append(rep.Violations,
			fmt.Sprintf("period %s holds a claim but no pending item targets it", rep.Reservation.Period.String()))
	}

	a.log.Info("audit pass complete",
		"report_id", rep.ID, "pending", rep.PendingCount, "violations", len(rep.Violations),
		"compliant", rep.Compliant())
	return rep, nil
}

func (a *Auditor) auditItem(it types.ScheduledItem) ItemFinding {
	pol, tagged := it.Policy()
	f := ItemFinding{
		ID:          it.ID,
		Policy:      pol,
		Tagged:      tagged,
		NextTrigger: it.NextTrigger,
		Repeats:     it.Repeats,
		Compliant:   true,
	}

	flag := func(reason string) {
		f.Compliant = false
		f.Reasons = append(f.Reasons, reason)
	}

	if !tagged {
		flag("missing policy tag, treated as " + string(pol))
	}
	if it.Repeats {
		flag("repeating schedule is never compliant")
	}

	if it.NextTrigger != nil {
		at := *it.NextTrigger
		if pol != types.PolicyCritical {
			if at.Day() != a.cfg.DeliveryDay {
				flag(fmt.Sprintf("scheduled on day %d, delivery day is %d", at.Day(), a.cfg.DeliveryDay))
			}
			if h := at.Hour(); h < a.cfg.WindowStartHour || h >= a.cfg.WindowEndHour {
				flag(fmt.Sprintf("scheduled at hour %d, allowed window is %02d:00-%02d:00",
					h, a.cfg.WindowStartHour, a.cfg.WindowEndHour))
			}
		}
	} else if pol != types.PolicyCritical {
		flag("no resolvable trigger for a non-critical policy")
	}

	return f
}
