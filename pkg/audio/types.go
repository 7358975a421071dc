package audio

import "time"

// Chunk is a single encoded audio fragment emitted by a capture [Stream].
// Chunks carry container-format bytes (e.g. WebM fragments from a
// MediaRecorder-style encoder), not raw PCM; the recording assembler
// concatenates them in arrival order.
type Chunk struct {
	// Data is the encoded fragment. Never retained by the stream after send.
	Data []byte

	// Received marks when the chunk was handed off by the capture device.
	Received time.Time
}
