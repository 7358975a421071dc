package recording

import "errors"

// ErrEmptyRecording is returned when a capture finished with zero bytes.
// It is a no-op failure: the session returns to idle so the user can retry.
var ErrEmptyRecording = errors.New("recording: no audio captured")

// ErrInvalidRecording is returned when the assembled container failed
// validation and could not be repaired. Terminal for the attempt; the user
// must redo.
var ErrInvalidRecording = errors.New("recording: invalid audio container")

// ErrUploadInFlight is returned when a redo or a competing start would
// discard local audio while an upload round trip is still pending.
var ErrUploadInFlight = errors.New("recording: upload in flight")

// ErrNoRecording is returned by upload operations when the session holds no
// assembled audio to commit.
var ErrNoRecording = errors.New("recording: nothing recorded")
