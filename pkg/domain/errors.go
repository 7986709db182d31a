package domain

import (
	"errors"
	"fmt"
)

// Sentinels for the fatal error categories. Typed errors below match their
// sentinel with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrInvariant     = errors.New("invariant violation")
	ErrCapability    = errors.New("missing capability")
)

// ConfigError reports an invalid, missing or out-of-range configuration value.
type ConfigError struct {
	Param  string
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Param, e.Reason, e.Cause)
	}
	return fmt.Sprintf("config %s: %s", e.Param, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error { return e.Cause }

// Is matches ErrConfiguration.
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// InvariantError reports an impossible state, such as an antigen index outside
// its configured range. It signals an upstream logic or configuration fault.
type InvariantError struct {
	Component string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: invariant violated: %s", e.Component, e.Detail)
}

// Is matches ErrInvariant.
func (e *InvariantError) Is(target error) bool { return target == ErrInvariant }

// CapabilityError reports that a required collaborator was not supplied.
type CapabilityError struct {
	Capability string
	Caller     string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: required capability %s not provided", e.Caller, e.Capability)
}

// Is matches ErrCapability.
func (e *CapabilityError) Is(target error) bool { return target == ErrCapability }

// Invariantf builds an InvariantError with a formatted detail.
func Invariantf(component, format string, args ...any) *InvariantError {
	return &InvariantError{Component: component, Detail: fmt.Sprintf(format, args...)}
}
