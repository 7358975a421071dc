package mock

import (
	"context"
	"sync"
	"testing"

	"github.com/Tavasya/speakdrill/pkg/audio"
)

func acquireStream(t *testing.T, p *Platform) *Stream {
	t.Helper()
	s, err := p.Acquire(context.Background(), audio.Constraints{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	return s.(*Stream)
}

func TestStream_PushPanicsWhenBufferFull(t *testing.T) {
	// A scripted stream's buffer has room for exactly one extra chunk.
	p := &Platform{ChunkData: [][]byte{{0x01}}}
	s := acquireStream(t, p)

	s.Push([]byte{0x02})

	defer func() {
		if recover() == nil {
			t.Fatal("Push into a full buffer should panic")
		}
	}()
	s.Push([]byte{0x03})
}

func TestStream_PushAfterCloseIsIgnored(t *testing.T) {
	p := &Platform{}
	s := acquireStream(t, p)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	s.Push([]byte{0x01}) // must not panic or send on the closed channel
}

func TestStream_PushDoesNotBlockConcurrentClose(t *testing.T) {
	p := &Platform{ChunkData: [][]byte{{0x01}}}
	s := acquireStream(t, p)
	s.Push([]byte{0x02}) // buffer now full

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer func() { _ = recover() }() // full-buffer panic is fine here
		s.Push([]byte{0x03})
	}()
	go func() {
		defer wg.Done()
		_ = s.Close()
	}()
	wg.Wait()

	if !s.Closed() {
		t.Fatal("stream should be closed")
	}
}
