// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
//  5. Check the cross-field window constraints.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load loads and validates the process configuration.
func Load() (*Config, error) {
	// Step 1: Enforce UTC timezone.
	time.Local = time.UTC

	// Step 2: Load .env file (non-fatal if absent). godotenv does NOT
	// override variables already set in the environment.
	_ = godotenv.Load()

	// Step 3: Process envconfig tags. The empty prefix means tag values are
	// read as exact variable names.
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 4: Validate the populated struct.
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	// Step 5: Cross-field constraints validator tags cannot express.
	if err := cfg.checkWindows(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// checkWindows validates the relationships between the policy hours.
func (c *Config) checkWindows() error {
	p := c.Policy
	if p.WindowStartHour >= p.WindowEndHour {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("delivery window start %d must precede end %d", p.WindowStartHour, p.WindowEndHour),
		}
	}
	if p.FallbackHour < p.WindowStartHour || p.FallbackHour >= p.WindowEndHour {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("fallback hour %d must lie inside the delivery window %d-%d", p.FallbackHour, p.WindowStartHour, p.WindowEndHour),
		}
	}
	return nil
}
