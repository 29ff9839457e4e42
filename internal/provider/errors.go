package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for provider calls.
type ErrorCategory string

const (
	ErrorTimeout     ErrorCategory = "timeout"
	ErrorUnavailable ErrorCategory = "unavailable"
	ErrorBadData     ErrorCategory = "bad_data"
	ErrorNotFound    ErrorCategory = "not_found"
	ErrorRateLimited ErrorCategory = "rate_limited"
	ErrorCancelled   ErrorCategory = "cancelled"
	ErrorInternal    ErrorCategory = "internal"
)

// ProviderError wraps a provider failure with its category.
type ProviderError struct {
	Category ErrorCategory
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.Provider, e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.Provider, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a categorized provider error.
func NewProviderError(category ErrorCategory, provider, message string, err error) *ProviderError {
	return &ProviderError{Category: category, Provider: provider, Message: message, Err: err}
}

// Categorize maps any error returned by a lookup onto the taxonomy. Context
// errors are recognised even when the provider did not wrap them.
func Categorize(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout
	case errors.Is(err, context.Canceled):
		return ErrorCancelled
	}
	return ErrorInternal
}

// Sentinel errors reported by the orchestrator.
var (
	ErrNoProvider    = errors.New("no provider supports this region")
	ErrNoCoordinates = errors.New("location has no resolved coordinates")
)
