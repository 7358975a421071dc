// Package voicechan defines the interface to the real-time voice-agent
// channel used in conversational practice. The channel is opaque: it emits
// participant, connection-state, and transcription events and accepts text
// messages; its internal protocol belongs to the agent service.
//
// The primary implementation is the WebSocket transport in the ws
// subpackage.
package voicechan

import "context"

// EventType classifies channel events.
type EventType string

const (
	// EventParticipant signals a participant joining or leaving.
	EventParticipant EventType = "participant"

	// EventConnectionState signals a connection-state change.
	EventConnectionState EventType = "connection_state"

	// EventTranscription carries a live transcription fragment.
	EventTranscription EventType = "transcription"
)

// Event is one channel event. Fields beyond Type are populated per event
// kind.
type Event struct {
	Type EventType

	// Participant is the participant identity for participant events and the
	// speaker for transcription events.
	Participant string

	// Joined reports join vs leave for participant events.
	Joined bool

	// State is the new connection state for connection-state events.
	State string

	// Text is the transcription fragment for transcription events.
	Text string

	// Final reports whether the transcription fragment is final.
	Final bool
}

// Channel is one live connection to the voice agent.
type Channel interface {
	// Events returns the event stream. The channel is closed when the
	// connection ends.
	Events() <-chan Event

	// SendMessage sends a text message into the conversation.
	SendMessage(ctx context.Context, text string) error

	// Close tears the connection down. Idempotent.
	Close() error
}

// Dialer opens voice channels.
type Dialer interface {
	Dial(ctx context.Context, url string) (Channel, error)
}
