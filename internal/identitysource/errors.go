package identitysource

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that upstream positively has no such identity.
var ErrNotFound = errors.New("identity not found upstream")

// ErrorCategory is the normalized upstream failure taxonomy.
type ErrorCategory string

const (
	ErrorTimeout          ErrorCategory = "timeout"
	ErrorBadData          ErrorCategory = "bad_data"
	ErrorAuthentication   ErrorCategory = "authentication"
	ErrorOutage           ErrorCategory = "outage"
	ErrorContractMismatch ErrorCategory = "contract_mismatch"
	ErrorRateLimited      ErrorCategory = "rate_limited"
	ErrorCircuitOpen      ErrorCategory = "circuit_open"
	ErrorInternal         ErrorCategory = "internal"
)

// SourceError wraps an upstream failure with its category.
type SourceError struct {
	Category   ErrorCategory
	SourceID   string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *SourceError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("identity source %s [%s]: %s: %v", e.SourceID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("identity source %s [%s]: %s", e.SourceID, e.Category, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Underlying
}

func NewSourceError(category ErrorCategory, sourceID, message string, underlying error) *SourceError {
	retryable := category == ErrorTimeout ||
		category == ErrorOutage ||
		category == ErrorRateLimited

	return &SourceError{
		Category:   category,
		SourceID:   sourceID,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

func IsRetryable(err error) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the category; ErrNotFound and foreign errors map to
// "not_found" and ErrorInternal respectively.
func GetCategory(err error) ErrorCategory {
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}
	var se *SourceError
	if errors.As(err, &se) {
		return se.Category
	}
	return ErrorInternal
}
