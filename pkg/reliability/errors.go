// Package reliability provides the retry and circuit-breaker primitives that
// wrap every external call made by action executors.
package reliability

import "errors"

// ErrCircuitOpen is returned when a breaker rejects a call without invoking
// the underlying operation. It is terminal for the current attempt and never
// consumes retry budget.
var ErrCircuitOpen = errors.New("circuit breaker open")

type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// MarkRetryable tags an error as transient so the retrier will attempt it
// again. Callers tag provider 5xx, 429 and network failures; validation,
// consent and malformed-input errors stay unmarked and fail fast.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}

	return &retryableError{err: err}
}

// IsRetryable reports whether err (or any wrapped error) is tagged transient.
func IsRetryable(err error) bool {
	var re *retryableError

	return errors.As(err, &re)
}
