package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// scriptedCompleter is a minimal improve.Completer for failover tests.
type scriptedCompleter struct {
	reply string
	err   error

	mu    sync.Mutex
	calls int
}

func (c *scriptedCompleter) Complete(_ context.Context, _, _ string, _ float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func (c *scriptedCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestCompleterFallback_PrimarySuccess(t *testing.T) {
	primary := &scriptedCompleter{reply: "primary reply"}
	secondary := &scriptedCompleter{reply: "backup reply"}

	f := NewCompleterFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	f.AddFallback("backup", secondary)

	got, err := f.Complete(context.Background(), "system", "user", 0.2)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "primary reply" {
		t.Errorf("reply = %q, want %q", got, "primary reply")
	}
	if secondary.callCount() != 0 {
		t.Errorf("secondary calls = %d, want 0", secondary.callCount())
	}
}

func TestCompleterFallback_FailsOverToSecondary(t *testing.T) {
	primary := &scriptedCompleter{err: errors.New("rate limited")}
	secondary := &scriptedCompleter{reply: "backup reply"}

	f := NewCompleterFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	f.AddFallback("backup", secondary)

	got, err := f.Complete(context.Background(), "system", "user", 0.2)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "backup reply" {
		t.Errorf("reply = %q, want %q", got, "backup reply")
	}
}

func TestCompleterFallback_AllFail(t *testing.T) {
	primary := &scriptedCompleter{err: errors.New("rate limited")}

	f := NewCompleterFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	_, err := f.Complete(context.Background(), "system", "user", 0.2)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
