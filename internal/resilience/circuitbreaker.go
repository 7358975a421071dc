// Package resilience shields the practice pipeline from failing speech and
// language services.
//
// [CircuitBreaker] is a three-state breaker (closed → open → half-open): a
// run of consecutive failures trips it, after which calls fail fast until a
// cooldown elapses and a handful of probe calls decide whether the service
// has recovered. [FallbackGroup] chains several providers of one kind behind
// per-provider breakers, so an unhealthy primary is skipped without the
// caller noticing. The typed wrappers ([AssessFallback], [TTSFallback],
// [STTFallback], [CompleterFallback]) bind a group to one provider
// interface each.
//
// Everything here is safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is the fail-fast error: the breaker is open and the
// cooldown has not elapsed, so the wrapped call was never made.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a [CircuitBreaker] operating mode.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen]. Entered after too
	// many consecutive failures; left when the reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through. Probes all
	// succeeding closes the breaker; any probe failing re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes one [CircuitBreaker]. The zero value is usable;
// each field falls back to its documented default.
type CircuitBreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// MaxFailures is how many consecutive failures trip the breaker.
	// Default 5.
	MaxFailures int

	// ResetTimeout is the open-state cooldown before probing starts.
	// Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds the probe calls allowed while half-open.
	// Default 3.
	HalfOpenMax int
}

// CircuitBreaker wraps calls to one remote service and trips after repeated
// failures so that a dead service costs one error check instead of one
// timeout per drill.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu          sync.Mutex
	state       State
	failStreak  int
	trippedAt   time.Time
	probesUsed  int
	probeFailed bool
}

// NewCircuitBreaker creates a breaker from cfg, filling defaults for any
// zero field.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
	}
}

// Execute runs fn unless the breaker refuses the call, and feeds the outcome
// back into the breaker state. fn's error is returned as-is; a refused call
// returns [ErrCircuitOpen].
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if callErr != nil {
		cb.onFailure(probe)
	} else {
		cb.onSuccess(probe)
	}
	return callErr
}

// admit decides whether a call may proceed and reports whether it counts as
// a half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.trippedAt) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probesUsed = 0
		cb.probeFailed = false
		slog.Info("circuit breaker probing", "name", cb.name)

	case StateHalfOpen:
		if cb.probesUsed >= cb.halfOpenMax {
			// Probe budget spent; wait for the in-flight probes to settle.
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.probesUsed++
		return true, nil
	}
	return false, nil
}

// onFailure updates state after a failed call. Caller holds cb.mu.
func (cb *CircuitBreaker) onFailure(probe bool) {
	cb.trippedAt = time.Now()

	if probe {
		// One bad probe is enough — back to open for another cooldown.
		cb.probeFailed = true
		cb.state = StateOpen
		cb.failStreak = cb.maxFailures
		slog.Warn("circuit breaker re-opened", "name", cb.name)
		return
	}

	cb.failStreak++
	if cb.failStreak >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("circuit breaker tripped",
			"name", cb.name, "consecutive_failures", cb.failStreak)
	}
}

// onSuccess updates state after a successful call. Caller holds cb.mu.
func (cb *CircuitBreaker) onSuccess(probe bool) {
	if !probe {
		cb.failStreak = 0
		return
	}
	if !cb.probeFailed && cb.probesUsed >= cb.halfOpenMax {
		cb.state = StateClosed
		cb.failStreak = 0
		cb.probesUsed = 0
		slog.Info("circuit breaker recovered", "name", cb.name)
	}
}

// State reports the breaker's mode. An open breaker whose cooldown has
// elapsed reports [StateHalfOpen]; the stored transition happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.trippedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failStreak = 0
	cb.probesUsed = 0
	cb.probeFailed = false
	slog.Info("circuit breaker reset", "name", cb.name)
}
