// Package vector implements the HNSW circuit breaker from §4.8. The
// approximate-nearest-neighbor graph itself (build, maintenance, query) is
// an external collaborator (§1); this package only tracks per-index health
// so the vector k-NN operator knows when to skip straight to flat scan.
package vector

import (
	"sync"
	"time"
)

// State is the circuit breaker's health state machine from §4.8.
type State uint8

const (
	StateHealthy State = iota
	StateFailed
	StateRetrying
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateFailed:
		return "failed"
	case StateRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// CircuitBreaker tracks one HNSW index's health. Safe for concurrent use —
// a single breaker instance is shared by every query against the index.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	retryDelay       time.Duration
	maxRetries       int

	state       State
	consecutive int
	retries     int
	lastFailure time.Time
}

// New constructs a breaker with the tuning parameters named in §4.8.
func New(failureThreshold int, retryDelay time.Duration, maxRetries int) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		retryDelay:       retryDelay,
		maxRetries:       maxRetries,
		state:            StateHealthy,
	}
}

// RecordSuccess resets the breaker to healthy.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateHealthy
	cb.consecutive = 0
	cb.retries = 0
}

// RecordFailure registers one HNSW attempt failure. After
// failureThreshold consecutive failures the breaker trips to failed.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutive++
	if cb.consecutive >= cb.failureThreshold {
		cb.state = StateFailed
		cb.lastFailure = time.Now()
	}
}

// ShouldUseHNSW reports whether the vector operator should attempt HNSW
// for its next query, per the state table in §4.8. A retrying decision
// moves the breaker into the retrying state as a side effect, since the
// caller is now committed to making that attempt.
func (cb *CircuitBreaker) ShouldUseHNSW(now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHealthy:
		return true
	case StateRetrying:
		return true
	case StateFailed:
		if now.Sub(cb.lastFailure) >= cb.retryDelay {
			cb.state = StateRetrying
			cb.retries++
			return true
		}
		return false
	default:
		return false
	}
}

// State returns the breaker's current state, for observability.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
