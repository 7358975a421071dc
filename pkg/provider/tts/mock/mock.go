// Package mock provides a scripted [tts.Provider] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/Tavasya/speakdrill/pkg/provider/tts"
)

// Provider returns a fixed clip or error.
type Provider struct {
	Clip tts.Clip
	Err  error

	mu    sync.Mutex
	calls int
	texts []string
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements [tts.Provider].
func (p *Provider) Synthesize(_ context.Context, text string) (tts.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.texts = append(p.texts, text)
	if p.Err != nil {
		return tts.Clip{}, p.Err
	}
	return p.Clip, nil
}

// Calls returns the number of Synthesize calls.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Texts returns every synthesised text in call order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}
