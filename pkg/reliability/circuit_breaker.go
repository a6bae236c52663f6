package reliability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CircuitState is the breaker position.
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

// CircuitBreaker isolates a persistently failing delivery channel. Closed
// counts consecutive failures; after FailureThreshold it opens and rejects
// immediately until RecoveryTimeout elapses, then half-open admits one trial
// call. A trial success closes the breaker; a trial failure reopens it and
// resets the timeout.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	logger           *slog.Logger

	mu           sync.Mutex
	state        CircuitState
	failureCount int
	lastFailure  time.Time
	trialActive  bool
}

// NewCircuitBreaker builds a closed breaker for the named channel.
func NewCircuitBreaker(name string, failureThreshold int, recoveryTimeout time.Duration, logger *slog.Logger) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}

	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}

	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		logger:           logger.With("module", "circuit_breaker", "channel", name),
	}
}

// Execute runs op under breaker protection. Concurrent callers synchronize on
// the failure counter, so a burst cannot race past the threshold check.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := cb.admit(ctx); err != nil {
		return err
	}

	err := op(ctx)
	cb.record(ctx, err)

	return err
}

// admit decides whether a call may proceed given the current state.
func (cb *CircuitBreaker) admit(ctx context.Context) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.recoveryTimeout {
			return fmt.Errorf("%w: channel %s", ErrCircuitOpen, cb.name)
		}

		cb.transition(ctx, StateHalfOpen)
		cb.trialActive = true

		return nil
	case StateHalfOpen:
		// Only one trial call at a time in half-open.
		if cb.trialActive {
			return fmt.Errorf("%w: channel %s trial in progress", ErrCircuitOpen, cb.name)
		}

		cb.trialActive = true

		return nil
	default:
		return fmt.Errorf("%w: channel %s in unknown state %s", ErrCircuitOpen, cb.name, cb.state)
	}
}

// record applies the outcome of an admitted call.
func (cb *CircuitBreaker) record(ctx context.Context, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.trialActive = false

		if err != nil {
			cb.lastFailure = time.Now()
			cb.transition(ctx, StateOpen)

			return
		}

		cb.failureCount = 0
		cb.transition(ctx, StateClosed)

		return
	}

	if err != nil {
		cb.failureCount++
		cb.lastFailure = time.Now()

		if cb.failureCount >= cb.failureThreshold && cb.state == StateClosed {
			cb.transition(ctx, StateOpen)
		}

		return
	}

	cb.failureCount = 0
}

// transition logs a state change. Callers hold the lock.
func (cb *CircuitBreaker) transition(ctx context.Context, to CircuitState) {
	if cb.state == to {
		return
	}

	cb.logger.WarnContext(ctx, "Circuit breaker state changed",
		"from", string(cb.state),
		"to", string(to),
		"failure_count", cb.failureCount)

	cb.state = to
}

// State returns the current breaker position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// BreakerSet holds the per-channel breaker singletons. Executors share one
// set per process so all senders for a channel see the same failure counter.
type BreakerSet struct {
	failureThreshold int
	recoveryTimeout  time.Duration
	logger           *slog.Logger

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerSet builds a set whose breakers share one threshold and timeout.
func NewBreakerSet(failureThreshold int, recoveryTimeout time.Duration, logger *slog.Logger) *BreakerSet {
	return &BreakerSet{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		logger:           logger,
		breakers:         make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for a channel name, creating it on first use.
func (s *BreakerSet) For(name string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[name]; ok {
		return cb
	}

	cb := NewCircuitBreaker(name, s.failureThreshold, s.recoveryTimeout, s.logger)
	s.breakers[name] = cb

	return cb
}
