package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// AppError represents a domain-specific error with structured information and enhanced context
type AppError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Details    any       `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
	Operation  string    `json:"operation,omitempty"`
	Cause      error     `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error wrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *AppError) WithContext(ctx context.Context, operation string) *AppError {
	if requestID := ctx.Value("request_id"); requestID != nil {
		if id, ok := requestID.(string); ok {
			e.RequestID = id
		}
	}
	e.Operation = operation
	return e
}

// Error codes for different error categories
const (
	ErrInvalidInput     = "INVALID_INPUT"     // 400 Bad Request
	ErrValidationFailed = "VALIDATION_FAILED" // 422 Unprocessable Entity
	ErrNotFound         = "NOT_FOUND"         // 404 Not Found
	ErrConflict         = "CONFLICT"          // 409 Conflict
	ErrInternal         = "INTERNAL_ERROR"    // 500 Internal Server Error
	ErrTimeout          = "TIMEOUT"           // 408 Request Timeout
	ErrTooLarge         = "PAYLOAD_TOO_LARGE" // 413 Payload Too Large
	ErrRateLimit        = "RATE_LIMIT"        // 429 Too Many Requests
	ErrUnauthorized     = "UNAUTHORIZED"      // 401 Unauthorized

	// Patch pipeline error codes
	ErrIO    = "IO_ERROR"    // source unreadable or destination unwritable
	ErrPatch = "PATCH_ERROR" // a required rule found nothing to act on
	ErrRange = "RANGE_ERROR" // a line range outside the document
)

// NewAppError creates a new AppError with the specified parameters
func NewAppError(code, message string, statusCode int, details any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
		Timestamp:  time.Now(),
	}
}

// NewAppErrorWithCause creates a new AppError with underlying cause
func NewAppErrorWithCause(code, message string, statusCode int, cause error, details any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

// NewIOError reports a failed read or write of path. The HTTP status follows
// the underlying filesystem error.
func NewIOError(op, path string, cause error) *AppError {
	status := 500
	switch {
	case errors.Is(cause, fs.ErrNotExist):
		status = 404
	case errors.Is(cause, fs.ErrPermission):
		status = 403
	}
	msg := fmt.Sprintf("%s %s failed", op, path)
	if cause != nil {
		return NewAppErrorWithCause(ErrIO, msg, status, cause, map[string]any{"path": path, "op": op})
	}
	return NewAppError(ErrIO, msg, status, map[string]any{"path": path, "op": op})
}

// NewPatchError reports a required rule that could not be applied.
func NewPatchError(index int, ruleID, reason string) *AppError {
	return NewAppError(ErrPatch, fmt.Sprintf("rule %d (%s): %s", index, ruleID, reason), 422, map[string]any{
		"index":   index,
		"rule_id": ruleID,
		"reason":  reason,
	})
}

// NewRangeError reports a line range that does not fit a document of total lines.
func NewRangeError(start, end, total int) *AppError {
	return NewAppError(ErrRange, fmt.Sprintf("line range [%d, %d) is invalid for a document of %d lines", start, end, total), 422, map[string]any{
		"start": start,
		"end":   end,
		"lines": total,
	})
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsTimeout checks if the error is a timeout error
func IsTimeout(err error) bool {
	return hasCode(err, ErrTimeout)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return hasCode(err, ErrNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return hasCode(err, ErrValidationFailed)
}

// IsIOError checks if the error is a file read/write failure
func IsIOError(err error) bool {
	return hasCode(err, ErrIO)
}

// IsPatchError checks if the error is a required-rule failure
func IsPatchError(err error) bool {
	return hasCode(err, ErrPatch)
}

// IsRangeError checks if the error is an invalid line range
func IsRangeError(err error) bool {
	return hasCode(err, ErrRange)
}
