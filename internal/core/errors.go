// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Ledger errors. Both signal a decision-engine bug: sizing rules
	// never request more than available, so hitting one aborts the run.
	ErrInsufficientCash  = &Error{Code: "INSUFFICIENT_CASH", Message: "buy notional exceeds available cash"}
	ErrInsufficientAsset = &Error{Code: "INSUFFICIENT_ASSET", Message: "sell quantity exceeds held asset"}

	// Simulation errors
	ErrInvalidSnapshot = &Error{Code: "INVALID_SNAPSHOT", Message: "snapshot rejected"}
	ErrNoSnapshots     = &Error{Code: "NO_SNAPSHOTS", Message: "no snapshots to simulate"}

	// Feed errors
	ErrFeedUnavailable = &Error{Code: "FEED_UNAVAILABLE", Message: "feed provider unavailable"}
	ErrNoData          = &Error{Code: "NO_DATA", Message: "no data available"}

	// Storage errors
	ErrRunNotFound   = &Error{Code: "RUN_NOT_FOUND", Message: "run not found"}
	ErrArchiveFailed = &Error{Code: "ARCHIVE_FAILED", Message: "archive operation failed"}

	// Notifier errors
	ErrNotifierFailed = &Error{Code: "NOTIFIER_FAILED", Message: "notifier failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Advisor errors
	ErrAdvisorFailed  = &Error{Code: "ADVISOR_FAILED", Message: "advisor request failed"}
	ErrAdvisorTimeout = &Error{Code: "ADVISOR_TIMEOUT", Message: "advisor request timeout"}

	// Job errors
	ErrJobNotFound = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}
)
