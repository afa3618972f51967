// Package prefs provides the static, config-backed preferences provider.
package prefs

import (
	"nudgegate/internal/config"
	"nudgegate/internal/types"
)

// Static serves preferences fixed at startup from configuration.
type Static struct {
	prefs    types.Preferences
	disabled map[types.Category]struct{}
}

var _ types.PreferencesProvider = (*Static)(nil)

// NewStatic builds a provider from configuration. A PreferredHour of -1 means
// no preferred time is set.
func NewStatic(cfg config.PrefsConfig) *Static {
	disabled := make(map[types.Category]struct{}, len(cfg.DisabledCategories))
	for _, raw := range cfg.DisabledCategories {
		disabled[types.ParseCategory(raw)] = struct{}{}
	}
	return &Static{
		prefs: types.Preferences{
			PreferredHour:     cfg.PreferredHour,
			PreferredMinute:   cfg.PreferredMinute,
			HasPreferredTime:  cfg.PreferredHour >= 0,
			QuietHoursEnabled: cfg.QuietHoursEnabled,
		},
		disabled: disabled,
	}
}

// Preferences returns the configured delivery preferences.
func (s *Static) Preferences() types.Preferences { return s.prefs }

// CategoryEnabled reports whether the category may be admitted.
func (s *Static) CategoryEnabled(c types.Category) bool {
	_, off := s.disabled[c]
	return !off
}
