// Package mock provides configurable in-memory implementations of
// [audio.Platform] and [audio.Stream] for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/Tavasya/speakdrill/pkg/audio"
)

// Platform is a scripted audio platform. Each Acquire returns a new
// [Stream] preloaded with ChunkData. Acquire and Close calls are counted so
// tests can assert the release guarantee.
//
// All fields must be set before first use; methods are safe for concurrent use.
type Platform struct {
	// ChunkData is the sequence of encoded chunks every acquired stream
	// delivers before idling. May be nil for an empty capture.
	ChunkData [][]byte

	// AcquireErr, when non-nil, is returned by Acquire instead of a stream.
	AcquireErr error

	mu       sync.Mutex
	acquires int
	streams  []*Stream
}

var _ audio.Platform = (*Platform)(nil)

// Acquire implements [audio.Platform].
func (p *Platform) Acquire(_ context.Context, _ audio.Constraints) (audio.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AcquireErr != nil {
		return nil, p.AcquireErr
	}
	p.acquires++

	s := &Stream{ch: make(chan audio.Chunk, len(p.ChunkData)+1)}
	for _, d := range p.ChunkData {
		s.ch <- audio.Chunk{Data: d, Received: time.Now()}
	}
	p.streams = append(p.streams, s)
	return s, nil
}

// Acquires returns how many successful Acquire calls have been made.
func (p *Platform) Acquires() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquires
}

// OpenStreams returns how many acquired streams have not been closed yet.
// A well-behaved caller leaves this at zero after teardown.
func (p *Platform) OpenStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	open := 0
	for _, s := range p.streams {
		if !s.Closed() {
			open++
		}
	}
	return open
}

// Stream is a mock capture stream fed from a fixed chunk script.
type Stream struct {
	mu     sync.Mutex
	ch     chan audio.Chunk
	closed bool
	closes int
}

var _ audio.Stream = (*Stream)(nil)

// Chunks implements [audio.Stream].
func (s *Stream) Chunks() <-chan audio.Chunk {
	return s.ch
}

// Push delivers an additional chunk mid-capture. Panics if the stream buffer
// is full; size the buffer via Platform.ChunkData in tests that push. The
// send never blocks, so a concurrent Close cannot deadlock against it.
func (s *Stream) Push(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- audio.Chunk{Data: data, Received: time.Now()}:
	default:
		panic("mock: stream buffer full")
	}
}

// Close implements [audio.Stream]. Idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	return nil
}

// Closed reports whether Close has been called at least once.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Closes returns the number of Close calls, including idempotent repeats.
func (s *Stream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
