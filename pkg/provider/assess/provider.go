// Package assess defines the Provider interface for pronunciation assessment
// backends.
//
// An assessment provider scores a recorded utterance against the reference
// text the learner was asked to read, returning an overall score, per-word
// accuracy, and the words below the weak-word threshold. The primary
// implementation is the Azure Speech backend in the azure subpackage.
//
// Implementations must be safe for concurrent use.
package assess

import (
	"context"
	"errors"
)

// ErrAssessment wraps any provider-side assessment failure. Callers match
// with [errors.Is].
var ErrAssessment = errors.New("assess: assessment failed")

// WordScore is the accuracy score of one reference word.
type WordScore struct {
	// Word is the reference word as scored.
	Word string

	// Accuracy is the pronunciation accuracy (0–100).
	Accuracy float64

	// ErrorType is the provider's classification when the word was not
	// produced correctly ("Omission", "Mispronunciation", ...). Empty for a
	// correct word.
	ErrorType string
}

// Result is one completed assessment.
type Result struct {
	// OverallScore is the utterance-level pronunciation score (0–100).
	OverallScore float64

	// Words holds the per-word scores in reference order.
	Words []WordScore

	// WeakWords lists the words scoring below the provider's weak-word
	// threshold, in reference order, for drill selection.
	WeakWords []string
}

// Provider is the abstraction over any pronunciation assessment backend.
type Provider interface {
	// Assess scores audio against referenceText. audio is an encoded
	// container as produced by the recording pipeline; mime names its format.
	//
	// Failures are wrapped in [ErrAssessment].
	Assess(ctx context.Context, audio []byte, mime, referenceText string) (Result, error)
}
