package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tavasya/speakdrill/pkg/provider/assess"
	assessmock "github.com/Tavasya/speakdrill/pkg/provider/assess/mock"
)

func TestAssessFallback_PrimarySuccess(t *testing.T) {
	primary := &assessmock.Provider{Result: assess.Result{OverallScore: 85}}
	secondary := &assessmock.Provider{Result: assess.Result{OverallScore: 60}}

	f := NewAssessFallback(primary, "azure", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	f.AddFallback("backup", secondary)

	res, err := f.Assess(context.Background(), []byte("audio"), "audio/webm", "hello world")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if res.OverallScore != 85 {
		t.Errorf("score = %v, want 85 (from primary)", res.OverallScore)
	}
	if secondary.Calls() != 0 {
		t.Errorf("secondary calls = %d, want 0", secondary.Calls())
	}
}

func TestAssessFallback_FailsOverToSecondary(t *testing.T) {
	primary := &assessmock.Provider{Err: errors.New("503")}
	secondary := &assessmock.Provider{Result: assess.Result{OverallScore: 72}}

	f := NewAssessFallback(primary, "azure", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	f.AddFallback("backup", secondary)

	res, err := f.Assess(context.Background(), []byte("audio"), "audio/webm", "hello")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if res.OverallScore != 72 {
		t.Errorf("score = %v, want 72 (from fallback)", res.OverallScore)
	}
	if primary.Calls() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.Calls())
	}
}

func TestAssessFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &assessmock.Provider{Err: errors.New("503")}
	secondary := &assessmock.Provider{Result: assess.Result{OverallScore: 50}}

	f := NewAssessFallback(primary, "azure", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	})
	f.AddFallback("backup", secondary)

	// Trip the primary's breaker.
	for i := 0; i < 2; i++ {
		if _, err := f.Assess(context.Background(), nil, "audio/webm", "x"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	primaryCalls := primary.Calls()

	// The open breaker must short-circuit the primary now.
	if _, err := f.Assess(context.Background(), nil, "audio/webm", "x"); err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if primary.Calls() != primaryCalls {
		t.Errorf("primary calls = %d, want %d (breaker open)", primary.Calls(), primaryCalls)
	}
}

func TestAssessFallback_AllFail(t *testing.T) {
	primary := &assessmock.Provider{Err: errors.New("503")}

	f := NewAssessFallback(primary, "azure", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	_, err := f.Assess(context.Background(), nil, "audio/webm", "x")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
