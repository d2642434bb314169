package helpers

import (
	"context"
	"fmt"
	"time"

	"ohlc-streamer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ObserverError struct {
	Message string
	Cause   error
}

func (e *ObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ ObserverError }
type ValidationError struct{ ObserverError }
type TransportError struct{ ObserverError }
type DatabaseError struct{ ObserverError }
type EngineError struct{ ObserverError }

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{ObserverError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string, cause error) error {
	return &ValidationError{ObserverError{Message: msg, Cause: cause}}
}

func NewTransportError(msg string, cause error) error {
	return &TransportError{ObserverError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{ObserverError{Message: msg, Cause: cause}}
}

func NewEngineError(msg string, cause error) error {
	return &EngineError{ObserverError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times, doubling the delay after each
// failure. It gives up early when ctx is cancelled.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return &ObserverError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries), Cause: lastErr}
}
