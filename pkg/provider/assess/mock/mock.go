// Package mock provides a scripted [assess.Provider] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/Tavasya/speakdrill/pkg/provider/assess"
)

// Provider returns a fixed result or error.
type Provider struct {
	Result assess.Result
	Err    error

	mu    sync.Mutex
	calls int
	last  string
}

var _ assess.Provider = (*Provider)(nil)

// Assess implements [assess.Provider].
func (p *Provider) Assess(_ context.Context, _ []byte, _, referenceText string) (assess.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.last = referenceText
	if p.Err != nil {
		return assess.Result{}, p.Err
	}
	return p.Result, nil
}

// Calls returns the number of Assess calls.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastReference returns the reference text of the most recent call.
func (p *Provider) LastReference() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
