package types

import (
	"time"
)

// MetadataPolicyKey is the metadata key under which the delivery policy tag is
// embedded on submitted items. The Compliance Auditor and Legacy Purge read it
// back to classify items scheduled by this engine; items without the tag were
// scheduled by an earlier version.
const MetadataPolicyKey = "nudgegate_policy"

// Trigger is the producer-requested trigger shape. Producers may ask for any
// shape; the Policy Resolver normalizes all of them into a single one-shot
// canonical trigger.
type Trigger struct {
	Kind TriggerKind `json:"kind"`
	// At is the requested fire time for one-shot and repeating shapes.
	// Ignored for TriggerNone.
	At time.Time `json:"at,omitempty"`
	// Every is the requested repeat interval for TriggerRepeating. It is
	// recorded for diagnostics only; repeating schedules are never emitted.
	Every time.Duration `json:"every,omitempty"`
}

// ScheduleRequest is a producer's ask to deliver one local notification.
// IDs are producer-chosen and unique; re-requesting an ID is idempotent and
// replaces any prior pending item with that ID.
type ScheduleRequest struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Category Category          `json:"category"`
	Priority int               `json:"priority"`
	Policy   DeliveryPolicy    `json:"delivery_policy"`
	Trigger  *Trigger          `json:"trigger,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks the request's structural invariants. It does not consult
// preferences or quota state; those checks belong to the Admission Controller.
func (r *ScheduleRequest) Validate() error {
	if r.ID == "" {
		return NewAppError(ErrCodeValidationMissingField, "request id is required", nil)
	}
	if r.Title == "" {
		return NewAppError(ErrCodeValidationMissingField, "request title is required", nil)
	}
	if !r.Policy.Valid() {
		return NewAppError(ErrCodeValidationInvalidPolicy, "unknown delivery policy: "+string(r.Policy), nil)
	}
	if r.Trigger == nil && r.Policy != PolicyCritical {
		// Non-critical requests always carry a trigger shape; default the
		// shape rather than rejecting, since TriggerNone is a valid input to
		// the resolver.
		r.Trigger = &Trigger{Kind: TriggerNone}
	}
	if r.Trigger != nil {
		switch r.Trigger.Kind {
		case TriggerNone, TriggerOneShot, TriggerRepeating:
		default:
			return NewAppError(ErrCodeValidationInvalidTrigger, "unknown trigger kind: "+string(r.Trigger.Kind), nil)
		}
	}
	if r.Priority < 0 {
		return NewAppError(ErrCodeValidationInvalidPriority, "priority must be non-negative", nil)
	}
	return nil
}

// Content extracts the user-visible payload that is handed to the delivery
// service, with the delivery policy tag folded into the metadata.
func (r *ScheduleRequest) Content() NotificationContent {
	meta := make(map[string]string, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		meta[k] = v
	}
	meta[MetadataPolicyKey] = string(r.Policy)
	return NotificationContent{
		Title:    r.Title,
		Body:     r.Body,
		Category: r.Category,
		Metadata: meta,
	}
}

// NotificationContent is the user-visible payload submitted to the delivery
// service alongside an ID and a canonical trigger.
type NotificationContent struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Category Category          `json:"category"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CanonicalTrigger is the only trigger shape this engine ever submits:
// either "fire as soon as possible" (At == nil) or a one-shot calendar time.
// Repeating triggers are never emitted.
type CanonicalTrigger struct {
	// At is the one-shot fire time. nil means fire ASAP.
	At *time.Time `json:"at,omitempty"`
}

// ScheduledItem is the read-only view of an item currently pending in the
// delivery service. NextTrigger is nil when the service cannot resolve a
// concrete fire time for the item.
type ScheduledItem struct {
	ID          string            `json:"id"`
	NextTrigger *time.Time        `json:"next_trigger,omitempty"`
	Repeats     bool              `json:"repeats"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Policy returns the item's declared delivery policy tag, or
// (PolicyPeriodCapped, false) when the item carries no tag and the policy had
// to be inferred. Untagged items predate policy tagging and were always
// period-capped in practice.
func (it ScheduledItem) Policy() (DeliveryPolicy, bool) {
	if raw, ok := it.Metadata[MetadataPolicyKey]; ok {
		p := DeliveryPolicy(raw)
		if p.Valid() {
			return p, true
		}
	}
	return PolicyPeriodCapped, false
}

// Preferences is the read-only snapshot of user-facing notification
// preferences consumed by the Policy Resolver.
type Preferences struct {
	// PreferredHour/PreferredMinute is the user's preferred daily delivery
	// time. HasPreferredTime is false when the user never picked one.
	PreferredHour    int
	PreferredMinute  int
	HasPreferredTime bool

	// QuietHoursEnabled turns on blackout-window suppression.
	QuietHoursEnabled bool
}
