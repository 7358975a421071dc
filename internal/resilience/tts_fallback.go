package resilience

import (
	"context"

	"github.com/Tavasya/speakdrill/pkg/provider/tts"
)

// TTSFallback is a [tts.Provider] that fails over between synthesis
// backends, each behind its own breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback wraps primary as the preferred synthesis backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback appends another synthesis backend to try after the primary.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text with the first backend that answers.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) (tts.Clip, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (tts.Clip, error) {
		return p.Synthesize(ctx, text)
	})
}
