package engine

import (
	"errors"
	"fmt"
)

// LoadError reports a missing or invalid backend artifact.
type LoadError struct {
	URI string
	Err error
}

func (e *LoadError) Error() string {
	if e.URI == "" {
		return "load: " + e.Err.Error()
	}
	return fmt.Sprintf("load %s: %v", e.URI, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError wraps err as a *LoadError for uri. An existing *LoadError is
// returned unchanged.
func NewLoadError(uri string, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return &LoadError{URI: uri, Err: err}
}

// UnsupportedModeError is returned when a call names a mode the adapter does
// not declare.
type UnsupportedModeError struct {
	Mode      Mode
	Supported []Mode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("unsupported mode %q (supported: %v)", e.Mode, e.Supported)
}

// ExecutionError wraps a backend failure during Run or Stream.
type ExecutionError struct {
	Mode Mode
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Mode, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is or wraps a *LoadError.
func IsLoadError(err error) bool {
	var e *LoadError
	return errors.As(err, &e)
}

// IsUnsupportedMode reports whether err is or wraps an *UnsupportedModeError.
func IsUnsupportedMode(err error) bool {
	var e *UnsupportedModeError
	return errors.As(err, &e)
}

// IsExecutionError reports whether err is or wraps an *ExecutionError.
func IsExecutionError(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}
