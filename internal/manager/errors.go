package manager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// drainingError rejects new streams once shutdown has begun (return 503).
type drainingError struct{}

func (drainingError) Error() string   { return "runtime is draining" }
func (drainingError) StatusCode() int { return http.StatusServiceUnavailable }

// ErrDraining is returned by Gate.Acquire and PredictStream while draining.
var ErrDraining error = drainingError{}

// IsDraining reports whether err indicates the runtime is draining.
func IsDraining(err error) bool { return errors.Is(err, ErrDraining) }

// TimeoutError reports a single-shot call that exceeded its deadline.
type TimeoutError struct {
	Model string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out after %s", e.Model, e.After)
}
func (e *TimeoutError) Unwrap() error   { return context.DeadlineExceeded }
func (e *TimeoutError) StatusCode() int { return http.StatusGatewayTimeout }

// IsTimeout reports whether err is a *TimeoutError.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// BadInputError reports an undecodable request payload (return 400).
type BadInputError struct{ Reason string }

func (e *BadInputError) Error() string   { return "bad input: " + e.Reason }
func (e *BadInputError) StatusCode() int { return http.StatusBadRequest }

// IsBadInput reports whether err is a *BadInputError.
func IsBadInput(err error) bool {
	var e *BadInputError
	return errors.As(err, &e)
}

type modelNotFoundError struct{ name string }

func (e modelNotFoundError) Error() string   { return "model not found: " + e.name }
func (e modelNotFoundError) StatusCode() int { return http.StatusNotFound }

// ErrModelNotFound returns an error for a model name the group does not serve.
func ErrModelNotFound(name string) error { return modelNotFoundError{name: name} }

// IsModelNotFound reports whether the error indicates an unknown model name.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// notReadyError rejects calls before Load completes or after Finalize.
type notReadyError struct {
	name  string
	state State
}

func (e notReadyError) Error() string {
	return fmt.Sprintf("%s: runtime not ready (%s)", e.name, e.state)
}
func (e notReadyError) StatusCode() int { return http.StatusServiceUnavailable }

// IsNotReady reports whether err indicates a runtime that is not serving.
func IsNotReady(err error) bool {
	var e notReadyError
	return errors.As(err, &e)
}

// ConfigError reports invalid runtime configuration found during Load.
type ConfigError struct {
	Model string
	Err   error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("%s: config: %v", e.Model, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}
