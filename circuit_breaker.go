package mediastore

import (
	"context"
	"sync"
	"time"
)

// BreakerState identifies a circuit breaker state
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// CircuitBreaker prevents cascading failures when the backend is unavailable.
// Implements the circuit breaker pattern with three states: closed, open, half-open.
//
// States:
//   - Closed: Normal operation, requests pass through
//   - Open: Backend failing, requests fail fast without calling it
//   - Half-Open: Testing if the backend recovered, limited requests allowed
//
// The state machine is pure: it never touches the network and is fully
// testable without a backend.
type CircuitBreaker struct {
	mu               sync.RWMutex
	maxFailures      int
	successThreshold int
	resetTimeout     time.Duration
	failures         int
	successes        int
	lastFailTime     time.Time
	state            BreakerState
	onStateChange    func(from, to BreakerState)
}

// NewCircuitBreaker creates a circuit breaker.
//
// Parameters:
//   - maxFailures: consecutive failures before opening the circuit
//   - resetTimeout: duration before transitioning from open to half-open
//   - successThreshold: consecutive successes in half-open before closing
//
// Example:
//
//	cb := NewCircuitBreaker(3, 30*time.Second, 2)
//	err := cb.Execute(ctx, func() error {
//	    return redisClient.Ping(ctx).Err()
//	})
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, successThreshold int) *CircuitBreaker {
	if successThreshold < 1 {
		successThreshold = 1
	}
	return &CircuitBreaker{
		maxFailures:      maxFailures,
		successThreshold: successThreshold,
		resetTimeout:     resetTimeout,
		state:            BreakerClosed,
	}
}

// WithStateChangeCallback adds a callback for state transitions.
// Useful for metrics and logging.
func (cb *CircuitBreaker) WithStateChangeCallback(fn func(from, to BreakerState)) *CircuitBreaker {
	cb.onStateChange = fn
	return cb
}

// Execute runs fn if the circuit is closed or half-open.
// Returns ErrUnavailable if the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.Allow() {
		return WithContext(ErrUnavailable, map[string]interface{}{
			"reason": "circuit breaker is open",
			"state":  string(cb.State()),
		})
	}

	err := fn()
	if err != nil {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return err
}

// Allow reports whether a call should be attempted, transitioning
// open -> half-open once the reset timeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		if time.Since(cb.lastFailTime) > cb.resetTimeout {
			cb.setState(BreakerHalfOpen)
			return true
		}
		return false
	case BreakerHalfOpen:
		return true
	default: // closed
		return true
	}
}

// RecordSuccess notes a successful backend call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.setState(BreakerClosed)
		}
	case BreakerClosed:
		cb.failures = 0
	}
}

// RecordFailure notes a failed backend call
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailTime = time.Now()

	switch cb.state {
	case BreakerHalfOpen:
		// Any failure while probing sends us straight back to open
		cb.setState(BreakerOpen)
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.maxFailures {
			cb.setState(BreakerOpen)
		}
	}
}

// setState transitions to a new state and triggers the callback.
// Counters are reset on state entry. Caller must hold cb.mu.
func (cb *CircuitBreaker) setState(newState BreakerState) {
	oldState := cb.state
	cb.state = newState

	switch newState {
	case BreakerClosed:
		cb.failures = 0
		cb.successes = 0
	case BreakerHalfOpen:
		cb.successes = 0
	case BreakerOpen:
		cb.failures = 0
	}

	if cb.onStateChange != nil {
		cb.onStateChange(oldState, newState)
	}
}

// State returns the current circuit breaker state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(BreakerClosed)
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}
