package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed means no provider in a [FallbackGroup] produced a result:
// every entry either failed or had an open breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig is shared by every entry of a [FallbackGroup]; each entry
// still gets its own breaker instance so one provider's failures never trip
// another's.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type guardedProvider[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds an ordered list of interchangeable providers. Calls go
// to the first entry whose breaker admits them; a failure moves on to the
// next entry. Safe for concurrent use once assembly (AddFallback) is done.
type FallbackGroup[T any] struct {
	providers []guardedProvider[T]
	cfg       FallbackConfig
}

// NewFallbackGroup creates a group whose first entry is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.add(primaryName, primary)
	return g
}

// AddFallback appends another provider. Order of addition is the failover
// order.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.add(name, fallback)
}

func (fg *FallbackGroup[T]) add(name string, value T) {
	bc := fg.cfg.CircuitBreaker
	bc.Name = name
	fg.providers = append(fg.providers, guardedProvider[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(bc),
	})
}

// Execute runs fn against providers in failover order until one succeeds.
// When every entry fails the last error is wrapped in [ErrAllFailed].
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(p T) (struct{}, error) {
		return struct{}{}, fn(p)
	})
	return err
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that return a
// value. It is a free function because methods cannot introduce new type
// parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.providers {
		p := &fg.providers[i]

		var result R
		err := p.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(p.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("provider breaker open, skipping", "provider", p.name)
		} else {
			slog.Warn("provider failed, failing over", "provider", p.name, "error", err)
		}
	}

	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
