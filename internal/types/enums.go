package types

// Category classifies a notification request by the producer surface that
// created it. The set is closed: the Smart Selector uses a fixed category
// ranking to break priority ties, so unknown categories collapse into
// CategoryOther.
type Category string

const (
	CategoryChallengeReminder Category = "challenge_reminder"
	CategoryStreakReminder    Category = "streak_reminder"
	CategoryTeamSocial        Category = "team_social"
	CategoryLeaderboard       Category = "leaderboard"
	CategoryOther             Category = "other"
)

// KnownCategories lists every valid Category in selector tie-break order
// (most important first).
var KnownCategories = []Category{
	CategoryChallengeReminder,
	CategoryStreakReminder,
	CategoryTeamSocial,
	CategoryLeaderboard,
	CategoryOther,
}

// ParseCategory maps a raw string onto a known Category. Unknown values
// collapse into CategoryOther rather than failing: producers ship
// independently of this engine and a new surface must never be able to
// break admission.
func ParseCategory(s string) Category {
	for _, c := range KnownCategories {
		if string(c) == s {
			return c
		}
	}
	return CategoryOther
}

// DeliveryPolicy tags a request with its intended urgency class. All three
// policies are funnelled through the identical monthly cap and the identical
// slot normalization -- the distinction is deliberate product surface area,
// not differentiated behavior. The single difference: PolicyCritical may be
// requested with no trigger at all, meaning "as soon as a slot is available".
type DeliveryPolicy string

const (
	PolicyPeriodCapped DeliveryPolicy = "period_capped"
	PolicyNudge        DeliveryPolicy = "nudge"
	PolicyCritical     DeliveryPolicy = "critical"
)

// Valid reports whether the policy is one of the three known values.
func (p DeliveryPolicy) Valid() bool {
	switch p {
	case PolicyPeriodCapped, PolicyNudge, PolicyCritical:
		return true
	}
	return false
}

// TriggerKind describes the shape of a producer-requested trigger before
// normalization. The Policy Resolver is total over all four shapes and always
// emits a non-repeating canonical trigger.
type TriggerKind string

const (
	// TriggerNone means the producer supplied no trigger (fire as soon as
	// policy allows).
	TriggerNone TriggerKind = "none"
	// TriggerOneShot is a single delivery at a requested wall-clock time.
	TriggerOneShot TriggerKind = "one_shot"
	// TriggerRepeating is a recurring delivery request. This engine never
	// emits repeating schedules; the shape is coerced to one-shot.
	TriggerRepeating TriggerKind = "repeating"
)

// OutcomeKind is the terminal classification of an admission attempt.
type OutcomeKind string

const (
	// OutcomeScheduled: the request holds the period's quota slot and is
	// pending in the delivery service.
	OutcomeScheduled OutcomeKind = "scheduled"
	// OutcomeDeferred: the period's slot was taken; the request waits in the
	// deferred queue for the Smart Selector.
	OutcomeDeferred OutcomeKind = "deferred"
	// OutcomeRejected: the request was refused (category disabled,
	// authorization unavailable, or submission failed after reservation).
	OutcomeRejected OutcomeKind = "rejected"
)

// AuthorizationStatus mirrors the delivery subsystem's permission state.
type AuthorizationStatus string

const (
	AuthorizationGranted      AuthorizationStatus = "granted"
	AuthorizationDenied       AuthorizationStatus = "denied"
	AuthorizationUndetermined AuthorizationStatus = "undetermined"
)
