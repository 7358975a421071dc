// Package fsm defines the per-attempt recording state machine as a pure
// transition function. State is held by the recording session; this package
// only answers "given this state and this event, what happens next".
package fsm

import "fmt"

// State is one of the recording attempt lifecycle states.
type State string

// Event is a trigger that may advance the lifecycle.
type Event string

const (
	// StateIdle — no capture in progress, nothing assembled.
	StateIdle State = "idle"

	// StateRecording — the microphone is held and chunks are accumulating.
	StateRecording State = "recording"

	// StateRecorded — capture finished, encoded audio assembled and validated.
	StateRecorded State = "recorded"

	// StateUploading — an upload/associate round trip is in flight.
	StateUploading State = "uploading"

	// StateUploaded — the durable audio reference is set. Terminal unless redone.
	StateUploaded State = "uploaded"

	// StateUploadFailed — the upload or the association failed; retry or redo.
	StateUploadFailed State = "upload_failed"

	// StateFailed — the assembled audio was invalid and unrepairable.
	// Terminal for the attempt; only redo leaves it.
	StateFailed State = "failed"
)

const (
	// EventStart begins capture (device acquired).
	EventStart Event = "start"

	// EventStop ends capture by explicit user action.
	EventStop Event = "stop"

	// EventTimeUp ends capture because the duration budget expired.
	EventTimeUp Event = "time_up"

	// EventInvalid marks the assembled audio invalid and unrepairable.
	EventInvalid Event = "invalid"

	// EventUploadBegin starts the upload round trip.
	EventUploadBegin Event = "upload_begin"

	// EventUploadOK completes the upload with a durable reference.
	EventUploadOK Event = "upload_ok"

	// EventUploadErr fails the upload round trip.
	EventUploadErr Event = "upload_err"

	// EventRetry re-enters uploading after a failure, reusing the local audio.
	EventRetry Event = "retry"

	// EventRedo discards the attempt and returns to idle.
	EventRedo Event = "redo"
)

// Transition returns the state reached by applying event to current.
// An error means the event is not legal in the current state; the returned
// state is then current, unchanged.
//
// Legal back-edges are exactly: retry (upload_failed → uploading) and redo
// (recorded, uploaded, upload_failed, failed → idle). Redo is deliberately not
// legal from uploading — local audio must not be discarded mid-upload.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		if event == EventStart {
			return StateRecording, nil
		}
	case StateRecording:
		switch event {
		case EventStop, EventTimeUp:
			return StateRecorded, nil
		case EventInvalid:
			return StateFailed, nil
		case EventRedo:
			// Abandoning a live capture (navigation away) is a discard.
			return StateIdle, nil
		}
	case StateRecorded:
		switch event {
		case EventUploadBegin:
			return StateUploading, nil
		case EventInvalid:
			return StateFailed, nil
		case EventRedo:
			return StateIdle, nil
		}
	case StateUploading:
		switch event {
		case EventUploadOK:
			return StateUploaded, nil
		case EventUploadErr:
			return StateUploadFailed, nil
		}
	case StateUploaded:
		if event == EventRedo {
			return StateIdle, nil
		}
	case StateUploadFailed:
		switch event {
		case EventRetry:
			return StateUploading, nil
		case EventRedo:
			return StateIdle, nil
		}
	case StateFailed:
		if event == EventRedo {
			return StateIdle, nil
		}
	default:
		return current, fmt.Errorf("fsm: unknown state %q", current)
	}
	return current, fmt.Errorf("fsm: event %q is not legal in state %q", event, current)
}

// IsTerminal reports whether s ends an attempt: the attempt either produced a
// durable reference or can only be redone.
func IsTerminal(s State) bool {
	return s == StateUploaded || s == StateFailed
}
