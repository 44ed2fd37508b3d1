package cloud

import (
	"sync"
	"time"
)

// CircuitState mirrors the teacher's three-state breaker
// (scheduler.CircuitBreaker): closed lets calls through, open rejects them
// outright, half-open lets calls through again until the next recorded
// success or failure closes or re-opens the circuit.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitHalfOpen
	CircuitOpen
)

func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitHalfOpen:
		return "half_open"
	case CircuitOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards outbound calls to the management service. Unlike the
// teacher's admission-control breaker (queue depth / worker saturation), this
// one opens on the same persistent-failure signal that escalates to FAILURE
// (§7 CloudTransientError: 3 retries exhausted) and cools down before
// moving to half-open. Half-open does not limit how many calls go through.
type CircuitBreaker struct {
	mu       sync.Mutex
	state    CircuitState
	openedAt time.Time
	cooldown time.Duration
}

// NewCircuitBreaker builds a breaker with the given cooldown before a probe
// is allowed after opening.
func NewCircuitBreaker(cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{cooldown: cooldown}
}

// Allow reports whether a call should be attempted right now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.openedAt) > cb.cooldown {
		cb.state = CircuitHalfOpen
		return true
	}
	return cb.state != CircuitOpen
}

// RecordSuccess closes the circuit. A successful probe from half-open closes
// it outright; there is no staged test-count ramp since each cloud call here
// is already preceded by its own 3-attempt retry loop.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
}

// RecordFailure opens the circuit on a persistent failure (retries
// exhausted) or re-opens it if a half-open probe also failed.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitOpen
	cb.openedAt = time.Now()
}

// State returns the current state (thread-safe), for the observability
// gauge.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
