// Package audio defines the interfaces and types for microphone capture
// within speakdrill.
//
// The two primary abstractions are:
//
//   - [Platform] — acquires the capture device and returns a [Stream].
//   - [Stream] — an active capture delivering encoded audio chunks until closed.
//
// Implementations wrap platform-specific capture primitives (a browser bridge,
// a PulseAudio binding, a test double). The interfaces are intentionally narrow
// so the recording session layer stays decoupled from device details.
//
// The capture device is an exclusive resource: at most one [Stream] may be
// live at a time, enforced by the recording tracker, and every successful
// Acquire must be paired with a Close on all exit paths.
package audio

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned by [Platform.Acquire] when the user or the
// operating system refused microphone access.
var ErrPermissionDenied = errors.New("audio: microphone permission denied")

// ErrDeviceUnavailable is returned by [Platform.Acquire] when no capture
// device is present or the device is held by another process.
var ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

// Constraints are advisory capture settings. Platforms apply what they
// support and silently ignore the rest; acquisition never fails because a
// constraint is unsupported.
type Constraints struct {
	// EchoCancellation requests acoustic echo cancellation.
	EchoCancellation bool

	// NoiseSuppression requests background noise suppression.
	NoiseSuppression bool

	// AutoGainControl requests automatic input gain.
	AutoGainControl bool

	// SampleRate is the preferred sample rate in Hz. Zero means platform default.
	SampleRate int

	// Channels is the preferred channel count. Zero means platform default.
	Channels int
}

// Stream is an active microphone capture.
//
// Implementations must be safe for concurrent use: Chunks may be drained from
// one goroutine while another calls Close.
type Stream interface {
	// Chunks returns the channel delivering encoded audio chunks in arrival
	// order. The channel is closed when the capture ends — either because
	// Close was called or because the device failed mid-capture.
	Chunks() <-chan Chunk

	// Close stops the capture and releases the device. It is idempotent;
	// second and later calls return nil. Callers must ensure Close runs on
	// every exit path, including error paths and owner teardown.
	Close() error
}

// Platform acquires the microphone.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Acquire requests the capture device with the given advisory constraints
	// and starts delivering chunks. The supplied ctx governs the acquisition
	// attempt only (e.g. a permission prompt); once acquired, the Stream lives
	// until [Stream.Close].
	//
	// Returns [ErrPermissionDenied] or [ErrDeviceUnavailable] (possibly
	// wrapped) on acquisition failure.
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}
