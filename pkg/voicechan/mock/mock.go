// Package mock provides an in-memory [voicechan.Channel] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/Tavasya/speakdrill/pkg/voicechan"
)

// Channel is a scripted voice channel. Tests push events with Emit and
// inspect sent messages with Sent.
type Channel struct {
	mu     sync.Mutex
	events chan voicechan.Event
	sent   []string
	closed bool
}

var _ voicechan.Channel = (*Channel)(nil)

// New creates an open mock channel.
func New() *Channel {
	return &Channel{events: make(chan voicechan.Event, 16)}
}

// Emit pushes an event to the subscriber. No-op after Close.
func (c *Channel) Emit(ev voicechan.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- ev
}

// Events implements [voicechan.Channel].
func (c *Channel) Events() <-chan voicechan.Event {
	return c.events
}

// SendMessage implements [voicechan.Channel].
func (c *Channel) SendMessage(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

// Close implements [voicechan.Channel]. Idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	return nil
}

// Sent returns every message sent so far.
func (c *Channel) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

// Dialer always returns ch.
type Dialer struct {
	Ch  *Channel
	Err error
}

var _ voicechan.Dialer = Dialer{}

// Dial implements [voicechan.Dialer].
func (d Dialer) Dial(context.Context, string) (voicechan.Channel, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Ch, nil
}
