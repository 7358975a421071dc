package recording

import (
	"fmt"
	"sync"

	"github.com/Tavasya/speakdrill/internal/recording/webm"
)

// EncodedAudio is the assembled, container-formatted byte sequence produced
// from captured chunks. It lives in memory only until the upload coordinator
// turns it into a durable remote reference.
type EncodedAudio struct {
	Data []byte
	MIME string
}

// Assembler accumulates encoded capture chunks into one EncodedAudio.
// Chunks are kept in arrival order; no other ordering guarantee is needed.
//
// An Assembler is reused across attempts for the same owner key: Begin resets
// it for a fresh capture. Safe for concurrent use — the capture drain
// goroutine appends while the session inspects.
type Assembler struct {
	mu     sync.Mutex
	chunks [][]byte
	total  int
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Begin discards any previously accumulated chunks.
func (a *Assembler) Begin() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = nil
	a.total = 0
}

// Append adds one encoded chunk. The slice is copied; callers may reuse the
// backing array.
func (a *Assembler) Append(b []byte) {
	if len(b) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	c := make([]byte, len(b))
	copy(c, b)
	a.chunks = append(a.chunks, c)
	a.total += len(c)
}

// Len returns the number of bytes accumulated so far.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Finalize concatenates the accumulated chunks into one EncodedAudio.
// Returns [ErrEmptyRecording] when zero bytes were captured.
func (a *Assembler) Finalize() (EncodedAudio, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.total == 0 {
		return EncodedAudio{}, ErrEmptyRecording
	}
	data := make([]byte, 0, a.total)
	for _, c := range a.chunks {
		data = append(data, c...)
	}
	return EncodedAudio{Data: data, MIME: "audio/webm"}, nil
}

// ValidateAndRepair checks enc for container well-formedness and applies a
// best-effort structural repair. The returned EncodedAudio carries the
// repaired bytes when a repair happened; otherwise the original.
//
// Returns [ErrInvalidRecording] (wrapped with the structural detail) when the
// container is invalid and unrepairable. Corrupt data must never reach the
// upload coordinator.
func ValidateAndRepair(enc EncodedAudio) (EncodedAudio, error) {
	report := webm.Validate(enc.Data)
	if report.Valid {
		// Streaming captures usually need the segment length patched even
		// though they validate.
		if fixed, ok := webm.Repair(enc.Data); ok {
			enc.Data = fixed
		}
		return enc, nil
	}

	fixed, ok := webm.Repair(enc.Data)
	if !ok {
		return EncodedAudio{}, fmt.Errorf("%w: %s", ErrInvalidRecording, report.Detail)
	}
	if rep := webm.Validate(fixed); !rep.Valid {
		return EncodedAudio{}, fmt.Errorf("%w: %s", ErrInvalidRecording, rep.Detail)
	}
	enc.Data = fixed
	return enc, nil
}
