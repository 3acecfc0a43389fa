package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure talking to an external service.
type ErrorKind string

const (
	// KindAuth means the credential was rejected.
	KindAuth ErrorKind = "auth"

	// KindNetwork means the request never produced an HTTP response.
	KindNetwork ErrorKind = "network"

	// KindRateLimited means the service asked us to slow down.
	KindRateLimited ErrorKind = "rate_limited"

	// KindUnexpected covers any other protocol surprise.
	KindUnexpected ErrorKind = "unexpected"
)

// Service names used in errors and reports.
const (
	ServiceAliasProvider = "addy.io"
	ServiceBreachOracle  = "haveibeenpwned"
)

// ServiceError is the tagged failure every client returns at its boundary.
// Status is zero when no HTTP response was received.
type ServiceError struct {
	Service    string
	Kind       ErrorKind
	Status     int
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s %s failure", e.Service, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Kind == KindRateLimited && e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap supports error unwrapping
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a ServiceError.
func NewServiceError(service string, kind ErrorKind, status int, err error) *ServiceError {
	return &ServiceError{Service: service, Kind: kind, Status: status, Err: err}
}

// KindOf extracts the ErrorKind from err. Errors that are not a
// ServiceError are reported as KindUnexpected.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnexpected
}

// RetryAfterOf returns the wait requested by a rate-limited error, or zero.
func RetryAfterOf(err error) time.Duration {
	var se *ServiceError
	if errors.As(err, &se) && se.Kind == KindRateLimited {
		return se.RetryAfter
	}
	return 0
}

// ResultError is the per-alias failure recorded in a CheckResult.
type ResultError struct {
	Kind    ErrorKind `json:"kind"`
	Service string    `json:"service,omitempty"`
	Status  int       `json:"status,omitempty"`
	Message string    `json:"message"`
}

// NewResultError converts err into its report form.
func NewResultError(err error) *ResultError {
	re := &ResultError{Kind: KindOf(err), Message: err.Error()}
	var se *ServiceError
	if errors.As(err, &se) {
		re.Service = se.Service
		re.Status = se.Status
	}
	return re
}
