package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nudgegate/internal/period"
	"nudgegate/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)        {}
func (nopLogger) Error(string, ...any)       {}
func (nopLogger) Warn(string, ...any)        {}
func (l nopLogger) With(...any) types.Logger { return l }

// fakePrefs is a canned PreferencesProvider.
type fakePrefs struct {
	prefs    types.Preferences
	disabled map[types.Category]bool
}

func (f *fakePrefs) Preferences() types.Preferences { return f.prefs }
func (f *fakePrefs) CategoryEnabled(c types.Category) bool {
	return !f.disabled[c]
}

func newResolver(prefs types.Preferences) *Resolver {
	return NewResolver(DefaultConfig(), &fakePrefs{prefs: prefs}, nopLogger{})
}

// Mid-September reference instant; the September slot (the 1st) is already past.
var now = time.Date(2026, time.September, 14, 12, 0, 0, 0, time.UTC)

func TestResolve_NoTriggerUsesPreferredTime(t *testing.T) {
	r := newResolver(types.Preferences{PreferredHour: 14, PreferredMinute: 15, HasPreferredTime: true})

	res := r.Resolve(&types.Trigger{Kind: types.TriggerNone}, types.PolicyNudge, now)

	require.NotNil(t, res.FireAt())
	want := time.Date(2026, time.October, 1, 14, 15, 0, 0, time.UTC)
	assert.True(t, res.FireAt().Equal(want), "got %v", res.FireAt())
	assert.Equal(t, period.Key{Year: 2026, Month: time.October}, res.Period)
}

func TestResolve_NoPreferredTimeFallsBack(t *testing.T) {
	r := newResolver(types.Preferences{})

	res := r.Resolve(nil, types.PolicyPeriodCapped, now)

	require.NotNil(t, res.FireAt())
	assert.Equal(t, 10, res.FireAt().Hour())
	assert.Equal(t, 30, res.FireAt().Minute())
}

func TestResolve_PreferredHourOutsideWindowFallsBack(t *testing.T) {
	tests := []struct {
		name string
		hour int
	}{
		{"before window", 7},
		{"at window end", 18},
		{"late evening", 23},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newResolver(types.Preferences{PreferredHour: tc.hour, HasPreferredTime: true})
			res := r.Resolve(nil, types.PolicyNudge, now)
			require.NotNil(t, res.FireAt())
			assert.Equal(t, 10, res.FireAt().Hour())
			assert.Equal(t, 30, res.FireAt().Minute())
		})
	}
}

func TestResolve_CandidateStillAheadStaysInPeriod(t *testing.T) {
	r := newResolver(types.Preferences{})

	early := time.Date(2026, time.September, 1, 8, 0, 0, 0, time.UTC)
	res := r.Resolve(nil, types.PolicyNudge, early)

	require.NotNil(t, res.FireAt())
	want := time.Date(2026, time.September, 1, 10, 30, 0, 0, time.UTC)
	assert.True(t, res.FireAt().Equal(want))
	assert.Equal(t, period.Key{Year: 2026, Month: time.September}, res.Period)
}

func TestResolve_PastCandidateAdvancesToNextPeriod(t *testing.T) {
	r := newResolver(types.Preferences{})

	res := r.Resolve(nil, types.PolicyNudge, now)

	want := time.Date(2026, time.October, 1, 10, 30, 0, 0, time.UTC)
	assert.True(t, res.FireAt().Equal(want))
}

func TestResolve_DecemberAdvancesToJanuary(t *testing.T) {
	r := newResolver(types.Preferences{})

	dec := time.Date(2026, time.December, 20, 12, 0, 0, 0, time.UTC)
	res := r.Resolve(nil, types.PolicyNudge, dec)

	want := time.Date(2027, time.January, 1, 10, 30, 0, 0, time.UTC)
	assert.True(t, res.FireAt().Equal(want))
	assert.Equal(t, period.Key{Year: 2027, Month: time.January}, res.Period)
}

func TestResolve_OneShotCarriesRequestedTime(t *testing.T) {
	r := newResolver(types.Preferences{PreferredHour: 14, HasPreferredTime: true})

	// The requested trigger's time wins over the preference; its date is
	// discarded in favor of the canonical delivery day.
	at := time.Date(2026, time.September, 22, 16, 45, 0, 0, time.UTC)
	res := r.Resolve(&types.Trigger{Kind: types.TriggerOneShot, At: at}, types.PolicyNudge, now)

	want := time.Date(2026, time.October, 1, 16, 45, 0, 0, time.UTC)
	assert.True(t, res.FireAt().Equal(want))
}

func TestResolve_RepeatingCoercedToOneShot(t *testing.T) {
	r := newResolver(types.Preferences{})

	at := time.Date(2026, time.September, 22, 11, 0, 0, 0, time.UTC)
	res := r.Resolve(&types.Trigger{
		Kind:  types.TriggerRepeating,
		At:    at,
		Every: 24 * time.Hour,
	}, types.PolicyPeriodCapped, now)

	require.NotNil(t, res.FireAt(), "repeating shape must resolve to a concrete one-shot")
	want := time.Date(2026, time.October, 1, 11, 0, 0, 0, time.UTC)
	assert.True(t, res.FireAt().Equal(want))
}

func TestResolve_CriticalWithoutTriggerFiresASAP(t *testing.T) {
	r := newResolver(types.Preferences{})

	for _, trigger := range []*types.Trigger{nil, {Kind: types.TriggerNone}} {
		res := r.Resolve(trigger, types.PolicyCritical, now)
		assert.Nil(t, res.FireAt(), "critical with no trigger means fire ASAP")
		assert.Equal(t, period.Key{Year: 2026, Month: time.September}, res.Period)
	}
}

func TestResolve_CriticalWithTriggerNormalizesLikeOthers(t *testing.T) {
	r := newResolver(types.Preferences{})

	at := time.Date(2026, time.September, 22, 13, 0, 0, 0, time.UTC)
	res := r.Resolve(&types.Trigger{Kind: types.TriggerOneShot, At: at}, types.PolicyCritical, now)

	require.NotNil(t, res.FireAt())
	assert.Equal(t, 13, res.FireAt().Hour())
}

func TestResolve_QuietHoursClamp(t *testing.T) {
	// Widen the allowed window so a late hour survives to the quiet-hours
	// check, then verify the clamp lands on the fallback time.
	cfg := DefaultConfig()
	cfg.WindowEndHour = 24
	r := NewResolver(cfg, &fakePrefs{prefs: types.Preferences{
		PreferredHour:     23,
		HasPreferredTime:  true,
		QuietHoursEnabled: true,
	}}, nopLogger{})

	res := r.Resolve(nil, types.PolicyNudge, now)

	require.NotNil(t, res.FireAt())
	assert.Equal(t, 10, res.FireAt().Hour(), "23:00 is inside the 22-08 blackout")
	assert.Equal(t, 30, res.FireAt().Minute())
	assert.Equal(t, 1, res.FireAt().Day(), "clamp stays on the same day")
}

func TestResolve_QuietHoursDisabledNoClamp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowEndHour = 24
	r := NewResolver(cfg, &fakePrefs{prefs: types.Preferences{
		PreferredHour:    23,
		HasPreferredTime: true,
	}}, nopLogger{})

	res := r.Resolve(nil, types.PolicyNudge, now)

	require.NotNil(t, res.FireAt())
	assert.Equal(t, 23, res.FireAt().Hour())
}

func TestInQuietHours(t *testing.T) {
	r := newResolver(types.Preferences{})

	for _, h := range []int{22, 23, 0, 3, 7} {
		assert.True(t, r.inQuietHours(h), "hour %d", h)
	}
	for _, h := range []int{8, 12, 21} {
		assert.False(t, r.inQuietHours(h), "hour %d", h)
	}
}

func TestResolverNeverEmitsRepeating(t *testing.T) {
	r := newResolver(types.Preferences{})
	triggers := []*types.Trigger{
		nil,
		{Kind: types.TriggerNone},
		{Kind: types.TriggerOneShot, At: now},
		{Kind: types.TriggerRepeating, At: now, Every: time.Hour},
	}
	policies := []types.DeliveryPolicy{types.PolicyPeriodCapped, types.PolicyNudge, types.PolicyCritical}

	for _, tr := range triggers {
		for _, p := range policies {
			res := r.Resolve(tr, p, now)
			// A CanonicalTrigger is structurally one-shot; assert the period
			// is always coherent with the fire time.
			if res.FireAt() != nil {
				assert.True(t, res.Period.Contains(*res.FireAt()))
			} else {
				assert.Equal(t, period.Of(now), res.Period)
			}
		}
	}
}
