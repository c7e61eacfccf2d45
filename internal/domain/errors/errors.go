// Package errors provides the gateway's domain error types and the sentinels
// services return for conditions the control plane reports to operators.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried in API error bodies.
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// Gateway sentinels. Services return these (possibly wrapped) and the
// control plane maps them through FromSentinel.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExists      = errors.New("session already exists")
	ErrHandlerNotFound    = errors.New("handler not found")
	ErrHandlerExists      = errors.New("handler already exists")
	ErrInvalidCredentials = errors.New("invalid credentials bundle")
	ErrInvalidIdentity    = errors.New("invalid identity")
)

// DomainError is an error with an API code and HTTP status attached.
type DomainError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Details == "" {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewValidationError reports a request the gateway refuses to act on.
func NewValidationError(message, details string) *DomainError {
	return &DomainError{
		Code:       ErrCodeValidation,
		Message:    message,
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewTimeoutError reports an operation that ran past its deadline.
func NewTimeoutError(operation string) *DomainError {
	return &DomainError{
		Code:       ErrCodeTimeout,
		Message:    operation + " timed out",
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

// NewInternalError wraps err without exposing its text to the caller.
func NewInternalError(message string, err error) *DomainError {
	return &DomainError{
		Code:       ErrCodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// FromSentinel converts a gateway sentinel into the matching DomainError.
// DomainErrors pass through unchanged and anything unrecognised becomes an
// internal error. subject names the session, handler or identity involved.
func FromSentinel(err error, subject string) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := GetDomainError(err); ok {
		return domainErr
	}

	var e *DomainError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		e = notFound("session", subject)
	case errors.Is(err, ErrHandlerNotFound):
		e = notFound("handler", subject)
	case errors.Is(err, ErrSessionExists):
		e = &DomainError{Code: ErrCodeConflict, Message: "session already exists", Details: subject, HTTPStatus: http.StatusConflict}
	case errors.Is(err, ErrHandlerExists):
		e = &DomainError{Code: ErrCodeConflict, Message: "handler already exists", Details: subject, HTTPStatus: http.StatusConflict}
	case errors.Is(err, ErrInvalidCredentials):
		e = NewValidationError("invalid credentials", err.Error())
	case errors.Is(err, ErrInvalidIdentity):
		e = NewValidationError("invalid phone number", subject)
	case errors.Is(err, context.DeadlineExceeded):
		e = NewTimeoutError(subject)
	default:
		return NewInternalError("operation failed", err)
	}
	e.Err = err
	return e
}

func notFound(resource, subject string) *DomainError {
	return &DomainError{
		Code:       ErrCodeNotFound,
		Message:    resource + " not found",
		Details:    subject,
		HTTPStatus: http.StatusNotFound,
	}
}

// GetDomainError extracts the first DomainError in err's chain.
func GetDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// IsValidationError reports whether err carries a validation DomainError.
func IsValidationError(err error) bool {
	domainErr, ok := GetDomainError(err)
	return ok && domainErr.Code == ErrCodeValidation
}
