// Package improve implements the transcript-improvement stage: a language
// model rewrites the learner's raw speaking transcript into corrected
// English, with an itemised list of edits for the review view.
//
// Improvement runs exclusively in the background — never on the recording
// path. [Service.Request] is a fire-and-forget trigger: it marks the practice
// session as processing and returns; the result lands in the store and
// reaches the bound view through the status feed. When the model response
// cannot be parsed, the improver returns the original transcript unchanged
// rather than surfacing an error.
package improve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const defaultTemperature = 0.2

// systemPrompt instructs the model to correct without rewriting register.
const systemPrompt = `You are an English-speaking coach reviewing a learner's spoken-practice transcript.

Your task: produce an improved version of the transcript.

Rules:
- Fix grammar, word choice, and unnatural phrasing.
- Keep the learner's meaning, register, and sentence order; do not add new content.
- Keep fillers out of the improved text but do not count their removal as an edit.
- Be conservative — if a sentence is already natural, leave it unchanged.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "improved_text": "<full improved transcript>",
  "edits": [
    {"original": "<original phrase>", "improved": "<improved phrase>", "reason": "<short reason>"}
  ]
}

If nothing needs improvement, return an empty edits array and improved_text equal to the input.`

// Edit captures a single phrase-level improvement produced by the model.
type Edit struct {
	// Original is the phrase as the learner said it.
	Original string

	// Improved is the suggested replacement.
	Improved string

	// Reason is a short learner-facing explanation.
	Reason string
}

// modelResponse is the expected JSON structure returned by the model.
type modelResponse struct {
	ImprovedText string `json:"improved_text"`
	Edits        []struct {
		Original string `json:"original"`
		Improved string `json:"improved"`
		Reason   string `json:"reason"`
	} `json:"edits"`
}

// Completer is the narrow slice of a chat-completion backend the improver
// needs. Implemented by [OpenAI]; tests substitute a scripted fake.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Option is a functional option for configuring an [Improver].
type Option func(*Improver)

// WithTemperature sets the sampling temperature. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(i *Improver) { i.temperature = temp }
}

// Improver rewrites raw transcripts through a [Completer]. Safe for
// concurrent use.
type Improver struct {
	completer   Completer
	temperature float64
}

// New returns an [Improver] backed by completer.
func New(completer Completer, opts ...Option) *Improver {
	i := &Improver{completer: completer, temperature: defaultTemperature}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Improve sends the transcript to the model and returns the improved text
// with its edit list.
//
// When the model response is unparseable, Improve returns the original text
// unchanged with a nil edit slice and a nil error. Context cancellation and
// network errors are returned as non-nil errors.
func (i *Improver) Improve(ctx context.Context, transcript string) (string, []Edit, error) {
	if strings.TrimSpace(transcript) == "" {
		return transcript, nil, nil
	}

	content, err := i.completer.Complete(ctx, systemPrompt, transcript, i.temperature)
	if err != nil {
		return transcript, nil, fmt.Errorf("improve: complete: %w", err)
	}

	improved, edits, parseErr := parseResponse(content, transcript)
	if parseErr != nil {
		// Unparseable response: return original unchanged, no error.
		return transcript, nil, nil
	}
	return improved, edits, nil
}

// parseResponse unmarshals the model output, stripping markdown code fences
// that some models wrap around JSON.
func parseResponse(content, original string) (string, []Edit, error) {
	cleaned := stripMarkdown(content)

	var r modelResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return "", nil, fmt.Errorf("improve: parse response: %w", err)
	}
	if r.ImprovedText == "" {
		return original, nil, nil
	}

	edits := make([]Edit, 0, len(r.Edits))
	for _, e := range r.Edits {
		if e.Original == "" || e.Original == e.Improved {
			continue
		}
		edits = append(edits, Edit{Original: e.Original, Improved: e.Improved, Reason: e.Reason})
	}
	return r.ImprovedText, edits, nil
}

func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
