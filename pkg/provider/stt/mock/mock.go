// Package mock provides a scripted [stt.Provider] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/Tavasya/speakdrill/pkg/provider/stt"
)

// Provider returns a fixed transcript or error.
type Provider struct {
	Transcript stt.Transcript
	Err        error

	mu    sync.Mutex
	calls int
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe implements [stt.Provider].
func (p *Provider) Transcribe(_ context.Context, _ []byte, _ string) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	return p.Transcript, nil
}

// Calls returns the number of Transcribe calls.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
