package resilience

import (
	"context"

	"github.com/Tavasya/speakdrill/internal/improve"
)

// CompleterFallback is an [improve.Completer] that fails over between
// chat-completion backends, each behind its own breaker.
type CompleterFallback struct {
	group *FallbackGroup[improve.Completer]
}

var _ improve.Completer = (*CompleterFallback)(nil)

// NewCompleterFallback wraps primary as the preferred completion backend.
func NewCompleterFallback(primary improve.Completer, primaryName string, cfg FallbackConfig) *CompleterFallback {
	return &CompleterFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback appends another completion backend to try after the primary.
func (f *CompleterFallback) AddFallback(name string, completer improve.Completer) {
	f.group.AddFallback(name, completer)
}

// Complete sends the prompt to the first healthy backend.
func (f *CompleterFallback) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	return ExecuteWithResult(f.group, func(c improve.Completer) (string, error) {
		return c.Complete(ctx, system, user, temperature)
	})
}
