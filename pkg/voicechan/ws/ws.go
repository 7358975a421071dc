// Package ws provides a WebSocket-backed voice channel implementing
// [voicechan.Channel]. Events arrive as JSON envelopes; outgoing text
// messages use the same framing.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Tavasya/speakdrill/pkg/voicechan"
)

// envelope is the wire framing shared with the agent service.
type envelope struct {
	Type        string `json:"type"`
	Participant string `json:"participant,omitempty"`
	Joined      bool   `json:"joined,omitempty"`
	State       string `json:"state,omitempty"`
	Text        string `json:"text,omitempty"`
	Final       bool   `json:"final,omitempty"`
}

// Dialer implements [voicechan.Dialer] over WebSocket.
type Dialer struct{}

var _ voicechan.Dialer = Dialer{}

// Dial implements [voicechan.Dialer]. The returned channel's read loop runs
// until the connection drops or Close is called.
func (Dialer) Dial(ctx context.Context, url string) (voicechan.Channel, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("voicechan: dial %q: %w", url, err)
	}
	ch := &Channel{
		conn:   conn,
		events: make(chan voicechan.Event, 16),
		done:   make(chan struct{}),
	}
	go ch.readLoop()
	return ch, nil
}

// Channel is one live WebSocket voice connection.
type Channel struct {
	conn   *websocket.Conn
	events chan voicechan.Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

var _ voicechan.Channel = (*Channel)(nil)

func (c *Channel) readLoop() {
	defer close(c.events)
	ctx := context.Background()
	for {
		var env envelope
		if err := wsjson.Read(ctx, c.conn, &env); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				slog.Warn("voicechan: read loop ended", "err", err)
			}
			return
		}
		ev := voicechan.Event{
			Type:        voicechan.EventType(env.Type),
			Participant: env.Participant,
			Joined:      env.Joined,
			State:       env.State,
			Text:        env.Text,
			Final:       env.Final,
		}
		switch ev.Type {
		case voicechan.EventParticipant, voicechan.EventConnectionState, voicechan.EventTranscription:
			// The consumer may have stopped reading before Close; a plain
			// send on a full buffer would pin this goroutine forever.
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		default:
			// Unknown event kinds are protocol additions; skip them.
		}
	}
}

// Events implements [voicechan.Channel].
func (c *Channel) Events() <-chan voicechan.Event {
	return c.events
}

// SendMessage implements [voicechan.Channel].
func (c *Channel) SendMessage(ctx context.Context, text string) error {
	err := wsjson.Write(ctx, c.conn, envelope{Type: "message", Text: text})
	if err != nil {
		return fmt.Errorf("voicechan: send: %w", err)
	}
	return nil
}

// Close implements [voicechan.Channel]. Idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()
	return c.conn.Close(websocket.StatusNormalClosure, "teardown")
}
