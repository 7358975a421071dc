// Package tts defines the Provider interface for text-to-speech backends.
//
// Speakdrill uses synthesis for reference pronunciations: the learner hears
// the word or sentence spoken before drilling it. The primary implementation
// is the ElevenLabs backend in the elevenlabs subpackage.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// ErrSynthesis wraps any provider-side synthesis failure. Callers match with
// [errors.Is].
var ErrSynthesis = errors.New("tts: synthesis failed")

// Clip is one synthesised utterance.
type Clip struct {
	// Audio is the encoded audio payload.
	Audio []byte

	// MIME names the audio container format.
	MIME string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text as speech. Failures are wrapped in
	// [ErrSynthesis].
	Synthesize(ctx context.Context, text string) (Clip, error)
}
