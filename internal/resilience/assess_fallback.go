package resilience

import (
	"context"

	"github.com/Tavasya/speakdrill/pkg/provider/assess"
)

// AssessFallback is an [assess.Provider] that fails over between scoring
// backends, each behind its own breaker.
type AssessFallback struct {
	group *FallbackGroup[assess.Provider]
}

var _ assess.Provider = (*AssessFallback)(nil)

// NewAssessFallback wraps primary as the preferred scoring backend.
func NewAssessFallback(primary assess.Provider, primaryName string, cfg FallbackConfig) *AssessFallback {
	return &AssessFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback appends another scoring backend to try after the primary.
func (f *AssessFallback) AddFallback(name string, provider assess.Provider) {
	f.group.AddFallback(name, provider)
}

// Assess scores the recording with the first backend that answers.
func (f *AssessFallback) Assess(ctx context.Context, audio []byte, mime, referenceText string) (assess.Result, error) {
	return ExecuteWithResult(f.group, func(p assess.Provider) (assess.Result, error) {
		return p.Assess(ctx, audio, mime, referenceText)
	})
}
