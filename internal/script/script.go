// Package script tracks a learner's position in a practice script and flags
// off-script speech.
//
// The [Tracker] consumes recognised words one at a time and matches them
// against the expected script position using Jaro-Winkler similarity, which
// tolerates recogniser misspellings ("wether" for "weather") without letting
// unrelated words pass. A small lookahead window absorbs skipped words;
// a run of consecutive unmatched words marks the learner off-script until
// they realign.
package script

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultSimilarityThreshold = 0.84
	defaultLookahead           = 3
	defaultOffScriptTolerance  = 4
)

// Option is a functional option for configuring a [Tracker].
type Option func(*Tracker)

// WithSimilarityThreshold sets the minimum Jaro-Winkler score for a spoken
// word to count as the expected script word. Default: 0.84.
func WithSimilarityThreshold(t float64) Option {
	return func(tr *Tracker) { tr.threshold = t }
}

// WithLookahead sets how many upcoming script words a spoken word may match,
// absorbing skipped words. Default: 3.
func WithLookahead(n int) Option {
	return func(tr *Tracker) { tr.lookahead = n }
}

// WithOffScriptTolerance sets how many consecutive unmatched words flip the
// tracker to off-script. Default: 4.
func WithOffScriptTolerance(n int) Option {
	return func(tr *Tracker) { tr.tolerance = n }
}

// Tracker follows one pass through one script. Not safe for concurrent use;
// each practice attempt owns its own tracker.
type Tracker struct {
	words     []string
	threshold float64
	lookahead int
	tolerance int

	pos       int
	missRun   int
	offScript bool
}

// New creates a tracker over the script text. The script is tokenised on
// whitespace with punctuation stripped.
func New(scriptText string, opts ...Option) *Tracker {
	t := &Tracker{
		words:     tokenize(scriptText),
		threshold: defaultSimilarityThreshold,
		lookahead: defaultLookahead,
		tolerance: defaultOffScriptTolerance,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Advance consumes one recognised word and reports whether it matched the
// script. Matching a lookahead word skips the words in between.
func (t *Tracker) Advance(spoken string) bool {
	word := normalize(spoken)
	if word == "" || t.pos >= len(t.words) {
		return false
	}

	end := t.pos + t.lookahead
	if end > len(t.words) {
		end = len(t.words)
	}
	for i := t.pos; i < end; i++ {
		if matchr.JaroWinkler(word, t.words[i], true) >= t.threshold {
			t.pos = i + 1
			t.missRun = 0
			t.offScript = false
			return true
		}
	}

	t.missRun++
	if t.missRun >= t.tolerance {
		t.offScript = true
	}
	return false
}

// OffScript reports whether the learner is currently off-script.
func (t *Tracker) OffScript() bool { return t.offScript }

// Done reports whether the whole script has been spoken.
func (t *Tracker) Done() bool { return t.pos >= len(t.words) }

// Progress returns how many script words have been matched and the script
// length.
func (t *Tracker) Progress() (matched, total int) {
	return t.pos, len(t.words)
}

// Remaining returns the unspoken tail of the script.
func (t *Tracker) Remaining() []string {
	out := make([]string, len(t.words)-t.pos)
	copy(out, t.words[t.pos:])
	return out
}

func tokenize(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := normalize(f); w != "" {
			words = append(words, w)
		}
	}
	return words
}

func normalize(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
