package resilience

import (
	"context"

	"github.com/Tavasya/speakdrill/pkg/provider/stt"
)

// STTFallback is an [stt.Provider] that fails over between transcription
// backends, each behind its own breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback wraps primary as the preferred transcription backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback appends another transcription backend to try after the primary.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe runs the recording through the first backend that answers.
func (f *STTFallback) Transcribe(ctx context.Context, audio []byte, mime string) (stt.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.Transcript, error) {
		return p.Transcribe(ctx, audio, mime)
	})
}
