// Package config defines the process configuration. Configuration is loaded
// once at startup and is immutable thereafter; values come from the OS
// environment, with a .env file as a lower-priority fallback. Any missing
// required value or invalid format fails startup immediately.
package config

import (
	"time"
)

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"nudgegate"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server ServerConfig
	Store  StoreConfig
	Quota  QuotaConfig
	Queue  QueueConfig
	Policy PolicyConfig
	Prefs  PrefsConfig
	Audit  AuditConfig
}

// ServerConfig holds the diagnostics HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// StoreConfig holds the durable key-value store settings.
type StoreConfig struct {
	// Path is the sqlite database file. Empty selects the in-memory store
	// (state does not survive restart).
	Path        string        `envconfig:"STORE_PATH" default:"nudgegate.db"`
	BusyTimeout time.Duration `envconfig:"STORE_BUSY_TIMEOUT" default:"5s"`
}

// QuotaConfig holds the per-period delivery cap.
type QuotaConfig struct {
	DeliveryCap int `envconfig:"DELIVERY_CAP" default:"1" validate:"min=1"`
}

// QueueConfig holds the deferred queue bounds.
type QueueConfig struct {
	Capacity int `envconfig:"QUEUE_CAPACITY" default:"25" validate:"min=1"`
}

// PolicyConfig holds the trigger normalization constants.
type PolicyConfig struct {
	DeliveryDay     int `envconfig:"DELIVERY_DAY" default:"1" validate:"min=1,max=28"`
	WindowStartHour int `envconfig:"WINDOW_START_HOUR" default:"9" validate:"min=0,max=23"`
	WindowEndHour   int `envconfig:"WINDOW_END_HOUR" default:"18" validate:"min=1,max=24"`
	FallbackHour    int `envconfig:"FALLBACK_HOUR" default:"10" validate:"min=0,max=23"`
	FallbackMinute  int `envconfig:"FALLBACK_MINUTE" default:"30" validate:"min=0,max=59"`
	QuietStartHour  int `envconfig:"QUIET_START_HOUR" default:"22" validate:"min=0,max=23"`
	QuietEndHour    int `envconfig:"QUIET_END_HOUR" default:"8" validate:"min=0,max=23"`
}

// PrefsConfig holds the static delivery preferences.
type PrefsConfig struct {
	PreferredHour     int  `envconfig:"PREFERRED_HOUR" default:"-1" validate:"min=-1,max=23"`
	PreferredMinute   int  `envconfig:"PREFERRED_MINUTE" default:"0" validate:"min=0,max=59"`
	QuietHoursEnabled bool `envconfig:"QUIET_HOURS_ENABLED" default:"true"`
	// DisabledCategories suppresses admission for the listed categories.
	DisabledCategories []string `envconfig:"DISABLED_CATEGORIES"`
}

// AuditConfig holds the report archive settings.
type AuditConfig struct {
	ArchiveDir string `envconfig:"AUDIT_ARCHIVE_DIR" default:"audits"`
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
