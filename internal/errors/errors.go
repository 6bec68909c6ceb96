// Package errors provides the structured error type (BuildError) used for
// category-based classification across the pipeline and CLI.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a build error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig ErrorCategory = "config"

	// Artifact transport errors
	CategoryTransport ErrorCategory = "transport"
	CategoryNotFound  ErrorCategory = "notfound"

	// Build and processing errors
	CategoryStage ErrorCategory = "stage"
	CategoryWrite ErrorCategory = "write"

	CategoryInternal ErrorCategory = "internal"
)

// BuildError is a structured error with category and cause context
type BuildError struct {
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// New creates a new BuildError
func New(category ErrorCategory, message string) *BuildError {
	return &BuildError{Category: category, Message: message}
}

// Wrap creates a new BuildError that wraps an existing error
func Wrap(err error, category ErrorCategory, message string) *BuildError {
	return &BuildError{Category: category, Message: message, Cause: err}
}

// Configuration creates a config-category error (missing required context).
func Configuration(format string, args ...any) *BuildError {
	return New(CategoryConfig, fmt.Sprintf(format, args...))
}

// Transport wraps a network or authorization failure moving an artifact.
func Transport(err error, format string, args ...any) *BuildError {
	return Wrap(err, CategoryTransport, fmt.Sprintf(format, args...))
}

// NotFound creates a notfound-category error for a missing remote key.
func NotFound(key string) *BuildError {
	return New(CategoryNotFound, fmt.Sprintf("remote key does not exist: %s", key))
}

// WriteFailure wraps a local filesystem failure during a copy or archive flush.
func WriteFailure(err error, format string, args ...any) *BuildError {
	return Wrap(err, CategoryWrite, fmt.Sprintf(format, args...))
}

// GetCategory extracts the category from an error, or CategoryInternal if the
// error is not a BuildError anywhere in its chain.
func GetCategory(err error) ErrorCategory {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Category
	}
	return CategoryInternal
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Category == category
	}
	return false
}

// IsNotFound reports whether err represents a missing remote key, so callers
// can treat "nothing to fetch" as a skip rather than a hard failure.
func IsNotFound(err error) bool { return IsCategory(err, CategoryNotFound) }

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return IsCategory(err, CategoryTransport) }

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool { return IsCategory(err, CategoryConfig) }
