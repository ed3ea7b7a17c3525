// Package errors provides standardized error handling for the push subsystem.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodeNetworkFailure   ErrorCode = "NETWORK_FAILURE"
	ErrCodeAuthRequired     ErrorCode = "AUTH_REQUIRED"
	ErrCodeMalformedPayload ErrorCode = "MALFORMED_PAYLOAD"

	ErrCodeTokenUnavailable   ErrorCode = "TOKEN_UNAVAILABLE"
	ErrCodeRegistrationFailed ErrorCode = "REGISTRATION_FAILED"
	ErrCodeFeedFetchFailed    ErrorCode = "FEED_FETCH_FAILED"
	ErrCodeBridgeUnavailable  ErrorCode = "BRIDGE_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewPermissionDeniedError marks push delivery as unavailable for this install.
// Non-fatal: the feed fetch path keeps working without a token.
func NewPermissionDeniedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePermissionDenied,
		Message:   "Notification permission not granted",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNetworkFailureError wraps a transient backend call failure.
func NewNetworkFailureError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNetworkFailure,
		Message:   "Backend call failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthRequiredError signals a call skipped because no session credential exists.
func NewAuthRequiredError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthRequired,
		Message:   "No authenticated session",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedPayloadError signals a push message missing required fields.
func NewMalformedPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedPayload,
		Message:   "Push payload failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenUnavailableError signals the provider returned no usable token.
func NewTokenUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenUnavailable,
		Message:   "Push token unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRegistrationFailedError wraps a failed device registration attempt.
func NewRegistrationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRegistrationFailed,
		Message:   "Device registration failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFeedFetchFailedError wraps a failed notification list fetch.
func NewFeedFetchFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFeedFetchFailed,
		Message:   "Notification feed fetch failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBridgeUnavailableError wraps a provider bridge connectivity failure.
func NewBridgeUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBridgeUnavailable,
		Message:   "Push provider bridge unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// Classify maps an arbitrary error to an ErrorCode for logging and metrics.
// Unknown errors are treated as network failures, the dominant failure mode
// for a device-side client.
func Classify(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeNetworkFailure
}

// IsRetryable reports whether the error is worth retrying on the next
// lifecycle trigger. Unknown errors are assumed transient.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return true
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}
