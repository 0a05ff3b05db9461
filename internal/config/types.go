// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultRepository is the GitHub repository releases are fetched from.
	DefaultRepository = "stagehand-cli/stagehand"
	// DefaultRetries is the default retry budget for GitHub requests.
	DefaultRetries = 3
	// DefaultRetentionDays is how long superseded versions are kept by default.
	DefaultRetentionDays = 42

	maxRetries = 10
)

var (
	// ErrInvalidUpdateConfig is the sentinel error wrapped by InvalidUpdateConfigError.
	ErrInvalidUpdateConfig = errors.New("invalid update config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Config holds the application configuration.
	Config struct {
		// Update configures release lookup and installation.
		Update UpdateConfig `json:"update" mapstructure:"update"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// UpdateConfig configures the update command.
	UpdateConfig struct {
		// Repository is the GitHub "owner/name" to fetch releases from.
		Repository string `json:"repository" mapstructure:"repository"`
		// DataDir is where versions are installed; empty selects DataDir().
		DataDir string `json:"data_dir" mapstructure:"data_dir"`
		// AllowUnverified permits installing releases without checksums.txt.
		AllowUnverified bool `json:"allow_unverified" mapstructure:"allow_unverified"`
		// Retries is the retry budget for failed GitHub requests.
		Retries int `json:"retries" mapstructure:"retries"`
		// RetentionDays is how long superseded versions are kept.
		RetentionDays int `json:"retention_days" mapstructure:"retention_days"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// InvalidUpdateConfigError is returned when an UpdateConfig has invalid fields.
	// It wraps ErrInvalidUpdateConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidUpdateConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Update: UpdateConfig{
			Repository:      DefaultRepository,
			DataDir:         "", // Resolved by DataDir()
			AllowUnverified: false,
			Retries:         DefaultRetries,
			RetentionDays:   DefaultRetentionDays,
		},
		UI: UIConfig{
			Verbose: false,
		},
	}
}

// Retention returns RetentionDays as a duration.
func (c UpdateConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// IsValid returns whether the UpdateConfig has valid fields.
// Environment overrides bypass the CUE schema, so the schema's constraints
// are checked again here.
func (c UpdateConfig) IsValid() (bool, []error) {
	var errs []error
	owner, name, ok := strings.Cut(c.Repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		errs = append(errs, fmt.Errorf("repository %q: want owner/name", c.Repository))
	}
	if c.DataDir != "" && strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir: must not be whitespace-only"))
	}
	if c.Retries < 0 || c.Retries > maxRetries {
		errs = append(errs, fmt.Errorf("retries %d: must be between 0 and %d", c.Retries, maxRetries))
	}
	if c.RetentionDays < 1 {
		errs = append(errs, fmt.Errorf("retention_days %d: must be at least 1", c.RetentionDays))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidUpdateConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	if ok, errs := c.Update.IsValid(); !ok {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidUpdateConfigError) Error() string {
	return "invalid update config: " + joinErrors(e.FieldErrors)
}

// Unwrap returns ErrInvalidUpdateConfig for errors.Is() compatibility.
func (e *InvalidUpdateConfigError) Unwrap() error { return ErrInvalidUpdateConfig }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return "invalid config: " + joinErrors(e.FieldErrors)
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func joinErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
