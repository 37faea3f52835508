package errors

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

var (
	ErrValidation  = define("VALIDATION_ERROR", "validation failed", http.StatusBadRequest, true)
	ErrInternal    = define("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError, false)
	ErrRateLimited = define("RATE_LIMITED", "too many requests", http.StatusTooManyRequests, false)

	// ErrMalformedRecord marks an input record that cannot be decoded or
	// fails validation. Never retried.
	ErrMalformedRecord = define("MALFORMED_RECORD", "malformed record", http.StatusUnprocessableEntity, true)
	// ErrStateNotReady is returned while window state is still being restored.
	ErrStateNotReady = define("STATE_NOT_READY", "window state is not ready", http.StatusServiceUnavailable, false)
	ErrStoreClosed   = define("STORE_CLOSED", "state store is closed", http.StatusServiceUnavailable, true)
)

// Error is an application error with a stable code and an HTTP status.
// Copies made by the With* methods compare equal to their sentinel under
// errors.Is.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Cause   error

	fatal bool
	// override is set by AsFatal and wins over the code default and the cause.
	override *bool
}

func define(code, message string, status int, fatal bool) *Error {
	return &Error{Code: code, Message: message, Status: status, fatal: fatal}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && e.Code == t.Code
}

// IsFatal reports whether retrying cannot help. A cause that classifies
// itself decides unless AsFatal was applied.
func (e *Error) IsFatal() bool {
	if e.override != nil {
		return *e.override
	}
	var classified interface{ IsFatal() bool }
	if e.Cause != nil && errors.As(e.Cause, &classified) {
		return classified.IsFatal()
	}
	return e.fatal
}

func (e *Error) IsRetryable() bool {
	return !e.IsFatal()
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	err.Details = maps.Clone(e.Details)
	if err.Details == nil {
		err.Details = make(map[string]interface{}, 1)
	}
	err.Details[key] = value
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	fatal := true
	err.override = &fatal
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedRecord)
}

func IsNotReady(err error) bool {
	return errors.Is(err, ErrStateNotReady)
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// ToErrorResponse renders err as the API error body. Stack traces are
// never included.
func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	details := maps.Clone(appErr.Details)
	delete(details, "stack_trace")
	if len(details) > 0 {
		response["details"] = details
	}
	return response
}
