// Package stt defines the Provider interface for speech-to-text backends.
//
// Transcription runs on completed recordings, not live audio: the upload
// pipeline hands the assembled container to the provider and stores the
// transcript on the practice session. The primary implementation is the
// Deepgram backend in the deepgram subpackage.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrTranscription wraps any provider-side transcription failure. Callers
// match with [errors.Is].
var ErrTranscription = errors.New("stt: transcription failed")

// Word is one recognised word with timing.
type Word struct {
	Text       string
	Start      float64
	End        float64
	Confidence float64
}

// Transcript is one completed transcription.
type Transcript struct {
	// Text is the full transcript.
	Text string

	// Confidence is the utterance-level confidence (0.0–1.0).
	Confidence float64

	// Words holds per-word timings when the backend provides them.
	Words []Word
}

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// Transcribe recognises audio; mime names its container format.
	// Failures are wrapped in [ErrTranscription].
	Transcribe(ctx context.Context, audio []byte, mime string) (Transcript, error)
}
