package recording

import "time"

// OwnerKey identifies the logical slot a recording attempt belongs to —
// a question index within a submission, or a practice-session id.
type OwnerKey string

// PracticeMode selects the duration budget class for an attempt.
type PracticeMode string

const (
	// ModeWordDrill covers short word-level pronunciation drills.
	ModeWordDrill PracticeMode = "word_drill"

	// ModeSentence covers single-sentence practice.
	ModeSentence PracticeMode = "sentence"

	// ModeFullTranscript covers full improved-transcript read-throughs and
	// assignment answers.
	ModeFullTranscript PracticeMode = "full_transcript"
)

// IsValid reports whether m is a recognised practice mode.
func (m PracticeMode) IsValid() bool {
	switch m {
	case ModeWordDrill, ModeSentence, ModeFullTranscript:
		return true
	}
	return false
}

// BudgetPolicy maps each practice mode to its maximum capture duration.
// Reaching the budget while recording auto-stops the capture exactly as an
// explicit stop would.
type BudgetPolicy map[PracticeMode]time.Duration

// DefaultBudgets returns the standard duration budget table.
func DefaultBudgets() BudgetPolicy {
	return BudgetPolicy{
		ModeWordDrill:      15 * time.Second,
		ModeSentence:       60 * time.Second,
		ModeFullTranscript: 5 * time.Minute,
	}
}

// Limit returns the budget for mode, falling back to the full-transcript
// budget for unknown modes.
func (p BudgetPolicy) Limit(mode PracticeMode) time.Duration {
	if d, ok := p[mode]; ok && d > 0 {
		return d
	}
	return DefaultBudgets()[ModeFullTranscript]
}
