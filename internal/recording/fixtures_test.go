package recording

import (
	"sync"
	"time"
)

// validWebM returns a minimal well-formed WebM container: EBML header,
// Segment with a known size, one Cluster of media data.
func validWebM() []byte {
	return []byte{
		0x1A, 0x45, 0xDF, 0xA3, 0x84, 0x42, 0x86, 0x81, 0x01, // EBML header
		0x18, 0x53, 0x80, 0x67, // Segment
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x07, // size = 7
		0x1F, 0x43, 0xB6, 0x75, 0x82, 0xA0, 0xA1, // Cluster
	}
}

// unknownSizeWebM returns the same container with the streaming encoders'
// unknown-size Segment marker, the case Repair patches.
func unknownSizeWebM() []byte {
	d := validWebM()
	copy(d[14:21], []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	return d
}

// garbage returns bytes with no container structure at all.
func garbage() []byte {
	return []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01}
}

// fakeClock is a virtual-time Clock. Advance moves time forward, firing due
// timers in deadline order with Now set to each deadline at fire time — so a
// budget expiring at t=5s observes an elapsed time of exactly 5s no matter
// how far the test advances in one step.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	deadline := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(deadline) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.fired = true
		c.now = next.at
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	c.now = deadline
	c.mu.Unlock()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
