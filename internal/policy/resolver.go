// Package policy normalizes heterogeneous producer trigger shapes into the
// single canonical, compliant delivery slot. Every delivery policy funnels
// through the same normalization: folding all notifications, regardless of
// urgency, into the one allowed slot per period is a product decision, not an
// implementation shortcut. This resolver never emits repeating schedules.
package policy

import (
	"time"

	"nudgegate/internal/period"
	"nudgegate/internal/types"
)

// Config carries the normalization constants.
type Config struct {
	// DeliveryDay is the day of the month the canonical slot lands on.
	DeliveryDay int

	// WindowStartHour/WindowEndHour bound the allowed daily delivery window
	// [start, end). A preferred hour outside it falls back to the fixed
	// default time.
	WindowStartHour int
	WindowEndHour   int

	// FallbackHour/FallbackMinute is the fixed default delivery time used
	// when no usable preferred time exists or the preferred hour is not
	// allowed. It must itself lie inside the allowed window.
	FallbackHour   int
	FallbackMinute int

	// QuietStartHour/QuietEndHour define the blackout window. A window
	// wrapping midnight (start > end) is supported.
	QuietStartHour int
	QuietEndHour   int
}

// DefaultConfig returns the production constants: slot on the 1st, allowed
// window 09:00-18:00, fallback 10:30, blackout 22:00-08:00.
func DefaultConfig() Config {
	return Config{
		DeliveryDay:     1,
		WindowStartHour: 9,
		WindowEndHour:   18,
		FallbackHour:    10,
		FallbackMinute:  30,
		QuietStartHour:  22,
		QuietEndHour:    8,
	}
}

// Resolution is the canonical one-shot outcome of trigger normalization.
type Resolution struct {
	// Trigger is what gets submitted to the delivery service: fire-ASAP
	// (At == nil) or a one-shot calendar time.
	Trigger types.CanonicalTrigger

	// Period is the quota period the resolution targets.
	Period period.Key
}

// FireAt returns the resolved fire time, or nil for fire-ASAP.
func (r Resolution) FireAt() *time.Time { return r.Trigger.At }

// Resolver maps (requested trigger, policy, preferences, now) onto a
// Resolution. It is stateless; preferences are read per call.
type Resolver struct {
	cfg   Config
	prefs types.PreferencesProvider
	log   types.Logger
}

// NewResolver creates a Resolver with the given normalization constants.
func NewResolver(cfg Config, prefs types.PreferencesProvider, log types.Logger) *Resolver {
	return &Resolver{cfg: cfg, prefs: prefs, log: log}
}

// Resolve normalizes the requested trigger. It is total over every input
// shape:
//
//   - nil or TriggerNone under PolicyCritical: fire as soon as a slot is
//     available (ASAP trigger, current period).
//   - nil or TriggerNone under any other policy: the default one-shot slot.
//   - TriggerOneShot: one-shot at the normalized candidate derived from the
//     requested time.
//   - TriggerRepeating: the repeating shape is rejected outright and replaced
//     with the same one-shot candidate.
func (r *Resolver) Resolve(trigger *types.Trigger, policy types.DeliveryPolicy, now time.Time) Resolution {
	if (trigger == nil || trigger.Kind == types.TriggerNone) && policy == types.PolicyCritical {
		return Resolution{
			Trigger: types.CanonicalTrigger{},
			Period:  period.Of(now),
		}
	}

	if trigger != nil && trigger.Kind == types.TriggerRepeating {
		r.log.Warn("repeating trigger rejected, coercing to one-shot",
			"requested_every", trigger.Every.String())
	}

	hour, minute := r.preferredTime(trigger)
	if !r.inAllowedWindow(hour) {
		hour, minute = r.cfg.FallbackHour, r.cfg.FallbackMinute
	}

	candidate := time.Date(now.Year(), now.Month(), r.cfg.DeliveryDay, hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 1, 0)
	}

	prefs := r.prefs.Preferences()
	if prefs.QuietHoursEnabled && r.inQuietHours(candidate.Hour()) {
		// Clamp to the fixed default time on the same day. The candidate is
		// never pushed into the blackout window and never dropped.
		candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
			r.cfg.FallbackHour, r.cfg.FallbackMinute, 0, 0, candidate.Location())
	}

	return Resolution{
		Trigger: types.CanonicalTrigger{At: &candidate},
		Period:  period.Of(candidate),
	}
}

// preferredTime picks the hour/minute seed for normalization: a time carried
// by the requested trigger wins, then the user's preferred time, then the
// fixed default.
func (r *Resolver) preferredTime(trigger *types.Trigger) (int, int) {
	if trigger != nil && trigger.Kind != types.TriggerNone && !trigger.At.IsZero() {
		return trigger.At.Hour(), trigger.At.Minute()
	}
	prefs := r.prefs.Preferences()
	if prefs.HasPreferredTime {
		return prefs.PreferredHour, prefs.PreferredMinute
	}
	return r.cfg.FallbackHour, r.cfg.FallbackMinute
}

func (r *Resolver) inAllowedWindow(hour int) bool {
	return hour >= r.cfg.WindowStartHour && hour < r.cfg.WindowEndHour
}

// inQuietHours reports whether the hour falls in the blackout window,
// handling windows that wrap midnight.
func (r *Resolver) inQuietHours(hour int) bool {
	start, end := r.cfg.QuietStartHour, r.cfg.QuietEndHour
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
