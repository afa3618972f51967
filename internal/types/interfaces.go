package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the engine.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// DeliveryService is the boundary to the OS-level local-notification
// subsystem. The engine trusts it to deliver what it accepts.
//
// Contract this design relies on:
//   - Add with a reused id replaces the prior pending item for that id.
//   - The trigger is either "fire ASAP" or a one-shot calendar time; this
//     engine never submits repeating triggers.
type DeliveryService interface {
	// Add submits (or replaces) a pending notification.
	Add(ctx context.Context, id string, content NotificationContent, trigger CanonicalTrigger) error

	// Remove cancels the pending items with the given ids. Unknown ids are
	// ignored.
	Remove(ctx context.Context, ids ...string) error

	// ListPending enumerates every currently-scheduled item.
	ListPending(ctx context.Context) ([]ScheduledItem, error)

	// AuthorizationStatus reports whether the subsystem may deliver at all.
	AuthorizationStatus(ctx context.Context) (AuthorizationStatus, error)
}

// PreferencesProvider is the read-only view of user notification preferences.
// Preference screens live outside this engine.
type PreferencesProvider interface {
	// Preferences returns the current preference snapshot.
	Preferences() Preferences

	// CategoryEnabled reports whether the user allows notifications for the
	// given category.
	CategoryEnabled(c Category) bool
}
