package engine

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by operations on a controller that has stopped.
var ErrStopped = errors.New("engine stopped")

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("engine already running")

// ConfigError reports an invalid controller configuration detected by Run.
type ConfigError struct {
	// Component names the misconfigured part ("location", "loop").
	Component string
	Err       error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s config: %v", e.Component, e.Err)
}

// Unwrap returns the underlying validation error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if err is a ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
