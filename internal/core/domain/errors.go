package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for flow and session misuse. These never reach the
// network; they are resolved locally.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrFlowPhase        = errors.New("action not valid in current flow phase")
	ErrRequestInFlight  = errors.New("a request for this flow is already outstanding")
	ErrCooldownActive   = errors.New("resend cooldown has not elapsed")
	ErrFlowLocked       = errors.New("account is temporarily locked")
	ErrUnknownPurpose   = errors.New("unknown flow purpose")
)

// ErrSessionInvalid means the identity service no longer recognises the
// session token, or its answer could not be obtained. Either way the local
// session must not outlive it (fail closed).
var ErrSessionInvalid = errors.New("session is no longer valid")

// ValidationError is a client-detected input problem, reported inline
// against a single field before any network call is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InvalidCodeError means the submitted one-time code did not match the
// outstanding challenge.
type InvalidCodeError struct {
	Message string
}

func (e *InvalidCodeError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "invalid one-time code"
}

// LockedError is the client image of a 403 lockout response. Duration holds
// the parsed cooldown (DefaultLockoutDuration when unparseable); Message is
// display text only.
type LockedError struct {
	Duration time.Duration
	Message  string
}

func (e *LockedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("account temporarily locked, try again in %d minutes", int(e.Duration.Minutes()))
}

// RemainingMinutes returns the lockout duration in whole minutes.
func (e *LockedError) RemainingMinutes() int {
	return int(e.Duration.Minutes())
}

// RateLimitedError is the client image of a 429 throttling response. It is
// a transient warning and never starts a lockout countdown. Attempts is the
// count reported by the service, zero when absent.
type RateLimitedError struct {
	Attempts int
	Message  string
}

func (e *RateLimitedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "too many attempts, please try again later"
}

// TransportError wraps a network or decode failure talking to the identity
// service. Callers must treat it as "unknown, assume invalid".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("identity service %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
