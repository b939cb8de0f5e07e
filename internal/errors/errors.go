// Package errors provides the error taxonomy for the context subsystem.
package errors

import (
	"errors"
	"strings"
	"time"
)

// ============================================================
// Error Categories
// ============================================================

// Category defines the type of error for handling decisions.
type Category int

const (
	// CategoryTemporary errors are retryable (network timeouts, transient source failures)
	CategoryTemporary Category = iota

	// CategoryPermanent errors are not retryable (bad source data, missing store)
	CategoryPermanent

	// CategoryTimeout errors are provider calls abandoned at their deadline
	CategoryTimeout

	// CategorySystem errors are system-level (disk, permissions)
	CategorySystem
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTemporary:
		return "temporary"
	case CategoryPermanent:
		return "permanent"
	case CategoryTimeout:
		return "timeout"
	case CategorySystem:
		return "system"
	default:
		return "unknown"
	}
}

// ============================================================
// AppError - Main Error Type
// ============================================================

// AppError is the main error type for all subsystem errors.
type AppError struct {
	// Code is a unique error code for programmatic handling
	Code string

	// Message is a human-readable error message
	Message string

	// Category determines how the error should be handled
	Category Category

	// Inner is the underlying error
	Inner error

	// Retryable indicates if the operation can be retried
	Retryable bool

	// Provider identifies the provider that produced the error, if any
	Provider string
}

// Error returns the error message.
func (e *AppError) Error() string {
	var sb strings.Builder

	if e.Code != "" {
		sb.WriteString("[")
		sb.WriteString(e.Code)
		sb.WriteString("] ")
	}

	sb.WriteString(e.Message)

	if e.Inner != nil {
		innerMsg := e.Inner.Error()
		if innerMsg != "" && innerMsg != e.Message {
			sb.WriteString(": ")
			sb.WriteString(innerMsg)
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Inner
}

// Is checks if the target error is contained in this error.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Inner, target)
}

// ============================================================
// Error Constructors
// ============================================================

// New creates a new AppError.
func New(code, message string, category Category) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: category,
	}
}

// Wrap wraps an existing error with context.
func Wrap(err error, code, message string, category Category) *AppError {
	if err == nil {
		return nil
	}

	// Preserve retryability and provider attribution even when the
	// AppError sits below a plain wrapper in the chain.
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:      code,
			Message:   message,
			Category:  category,
			Inner:     err,
			Retryable: appErr.Retryable,
			Provider:  appErr.Provider,
		}
	}

	return &AppError{
		Code:     code,
		Message:  message,
		Category: category,
		Inner:    err,
	}
}

// Temporary creates a retryable temporary error.
func Temporary(code, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  CategoryTemporary,
		Retryable: true,
	}
}

// Permanent creates a non-retryable permanent error.
func Permanent(code, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  CategoryPermanent,
		Retryable: false,
	}
}

// Timeout creates an error for a provider call abandoned at its deadline.
func Timeout(code, message string, after time.Duration) *AppError {
	return &AppError{
		Code:      code,
		Message:   message + " after " + after.String(),
		Category:  CategoryTimeout,
		Retryable: true,
	}
}

// WithProvider tags the error with the provider id that produced it.
func (e *AppError) WithProvider(id string) *AppError {
	e.Provider = id
	return e
}

// ============================================================
// Error Codes
// ============================================================

const (
	// Provider errors
	CodeProviderFetchFailed    = "PROVIDER_FETCH_FAILED"
	CodeProviderFallbackFailed = "PROVIDER_FALLBACK_FAILED"
	CodeProviderTimeout        = "PROVIDER_TIMEOUT"

	// Source errors
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeSourceParseError  = "SOURCE_PARSE_ERROR"

	// Store errors
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeStoreQueryFailed = "STORE_QUERY_FAILED"

	// Orchestrator errors
	CodeContextInsufficient = "CONTEXT_INSUFFICIENT"

	// Config errors
	CodeConfigInvalid  = "CONFIG_INVALID"
	CodeConfigNotFound = "CONFIG_NOT_FOUND"
)

// ============================================================
// Helpers
// ============================================================

// GetCategory extracts the category from an error.
// Returns CategoryTemporary for non-AppError errors.
func GetCategory(err error) Category {
	if err == nil {
		return CategoryTemporary
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category
	}

	// Safe default for unknown errors
	return CategoryTemporary
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	return true
}

// IsTimeout checks if an error is a deadline abandonment.
func IsTimeout(err error) bool {
	return GetCategory(err) == CategoryTimeout
}

// AsAppError extracts the AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
