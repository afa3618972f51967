// Package purge removes pending items left behind by earlier builds whose
// schedules are no longer compliant. The sweep runs once per process start
// and is conservative: anything it cannot positively classify stays put.
package purge

import (
	"context"
	"strings"
	"sync"

	"nudgegate/internal/policy"
	"nudgegate/internal/types"
)

// deprecatedIDPrefixes match identifier schemes from retired builds. Items
// carrying them are always removed.
var deprecatedIDPrefixes = []string{
	"daily-nudge-",
	"weekly-digest-",
	"streak-v1-",
}

// legacyHour is the delivery hour an earlier build hardcoded. An untagged
// item sitting exactly on it is a leftover, not a user schedule.
const legacyHour = 20

// Purger sweeps the external pending set once.
type Purger struct {
	once     sync.Once
	delivery types.DeliveryService
	cfg      policy.Config
	log      types.Logger
}

// New creates a Purger.
func New(delivery types.DeliveryService, cfg policy.Config, log types.Logger) *Purger {
	return &Purger{delivery: delivery, cfg: cfg, log: log}
}

// RunOnce performs the sweep on the first call; later calls are no-ops. It
// returns the ids it removed (nil on the no-op calls).
func (p *Purger) RunOnce(ctx context.Context) ([]string, error) {
	var removed []string
	var err error
	p.once.Do(func() {
		removed, err = p.sweep(ctx)
	})
	return removed, err
}

func (p *Purger) sweep(ctx context.Context) ([]string, error) {
	items, err := p.delivery.ListPending(ctx)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeDeliveryUnavailable, "purge: list pending", err)
	}

	var doomed []string
	for _, it := range items {
		if reason, ok := p.classify(it); ok {
			p.log.Info("purging legacy item", "id", it.ID, "reason", reason)
			doomed = append(doomed, it.ID)
		}
	}
	if len(doomed) == 0 {
		p.log.Info("legacy purge found nothing to remove", "scanned", len(items))
		return nil, nil
	}

	if err := p.delivery.Remove(ctx, doomed...); err != nil {
		return nil, types.NewAppError(types.ErrCodeDeliveryUnavailable, "purge: remove", err)
	}
	p.log.Info("legacy purge complete", "scanned", len(items), "removed", len(doomed))
	return doomed, nil
}

// classify decides whether an item is a known-legacy leftover. The zero
// return means "leave it alone".
func (p *Purger) classify(it types.ScheduledItem) (string, bool) {
	for _, prefix := range deprecatedIDPrefixes {
		if strings.HasPrefix(it.ID, prefix) {
			return "deprecated id pattern " + prefix, true
		}
	}

	if it.Repeats {
		return "repeating schedule", true
	}

	pol, tagged := it.Policy()

	if !tagged && it.NextTrigger != nil && it.NextTrigger.Hour() == legacyHour {
		return "untagged item at retired delivery hour", true
	}

	// Tagged items are ours; a capped one sitting outside the compliant
	// window was written by a build with different constants.
	if tagged && pol != types.PolicyCritical && it.NextTrigger != nil {
		h := it.NextTrigger.Hour()
		if h < p.cfg.WindowStartHour || h >= p.cfg.WindowEndHour {
			return "outside allowed delivery window", true
		}
	}

	return "", false
}
