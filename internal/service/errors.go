package service

import "errors"

// ValidationError means the caller supplied an input that violates a
// precondition. Never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ConfigurationError means a required remote plan is missing for a tier that
// needs one. Fatal for the operation; nothing is committed past it.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return e.Reason
}

// ErrDowngradeThrottled is returned when a user tries a second downgrade
// within the same calendar month.
var ErrDowngradeThrottled = &ValidationError{Reason: "membership can be downgraded only once per month"}

// ErrTokenConflict means a concurrent refresh already rotated the token.
// The caller must treat it as a conflict, not a transient fault.
var ErrTokenConflict = errors.New("refresh token was already rotated")
