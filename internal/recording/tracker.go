package recording

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tavasya/speakdrill/internal/recording/fsm"
	"github.com/Tavasya/speakdrill/pkg/audio"
)

// Tracker owns the recording sessions of one view (one submission attempt or
// one practice workflow) and enforces the single cross-key invariant: at most
// one live microphone capture at a time. Starting a capture for one owner key
// while another key is recording force-stops the other first — the device is
// never held twice.
//
// All exported methods are safe for concurrent use.
type Tracker struct {
	platform    audio.Platform
	clock       Clock
	budgets     BudgetPolicy
	constraints audio.Constraints
	onChange    func(Snapshot)

	// beginMu serialises whole Begin sequences. A session sits in idle for
	// the full duration of the device acquisition (permission prompt
	// included), invisible to the live-recording guard; without this lock two
	// concurrent Begin calls could both acquire and hold two streams.
	beginMu sync.Mutex

	mu       sync.Mutex
	sessions map[OwnerKey]*Session
	live     *Session
}

// TrackerOption configures a [Tracker].
type TrackerOption func(*Tracker)

// WithBudgets overrides the default duration budget table.
func WithBudgets(p BudgetPolicy) TrackerOption {
	return func(t *Tracker) { t.budgets = p }
}

// WithConstraints sets the capture constraints passed to the platform.
func WithConstraints(c audio.Constraints) TrackerOption {
	return func(t *Tracker) { t.constraints = c }
}

// WithClock injects a clock for tests.
func WithClock(c Clock) TrackerOption {
	return func(t *Tracker) { t.clock = c }
}

// WithOnChange registers a callback receiving every session snapshot change.
func WithOnChange(fn func(Snapshot)) TrackerOption {
	return func(t *Tracker) { t.onChange = fn }
}

// NewTracker creates a Tracker capturing through platform.
func NewTracker(platform audio.Platform, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		platform: platform,
		clock:    systemClock{},
		budgets:  DefaultBudgets(),
		sessions: make(map[OwnerKey]*Session),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Begin starts a fresh capture attempt for owner, superseding any previous
// session for the same key. If another owner key is currently recording it is
// auto-stopped (exactly as an explicit stop) before the device is reacquired.
//
// The returned session is already recording.
func (t *Tracker) Begin(ctx context.Context, owner OwnerKey, mode PracticeMode) (*Session, error) {
	t.beginMu.Lock()
	defer t.beginMu.Unlock()

	t.mu.Lock()

	// A session mid-upload must not be silently superseded; its local audio
	// would be discarded while in flight.
	if prev, ok := t.sessions[owner]; ok && prev.State() == fsm.StateUploading {
		t.mu.Unlock()
		return nil, ErrUploadInFlight
	}

	// Force-stop whichever key currently holds the microphone.
	if t.live != nil && t.live.State() == fsm.StateRecording {
		stopped := t.live
		t.mu.Unlock()
		if err := stopped.Stop(); err != nil {
			slog.Warn("tracker: auto-stop before new capture",
				"stopped_owner", stopped.Owner(), "new_owner", owner, "err", err)
		}
		t.mu.Lock()
	}

	sess := NewSession(SessionConfig{
		Owner:       owner,
		Mode:        mode,
		TimeLimit:   t.budgets.Limit(mode),
		Constraints: t.constraints,
		Clock:       t.clock,
		OnChange:    t.onChange,
	})
	t.sessions[owner] = sess
	t.live = sess
	t.mu.Unlock()

	if err := sess.Start(ctx, t.platform); err != nil {
		t.mu.Lock()
		if t.live == sess {
			t.live = nil
		}
		delete(t.sessions, owner)
		t.mu.Unlock()
		return nil, fmt.Errorf("tracker: begin %q: %w", owner, err)
	}
	return sess, nil
}

// Session returns the current session for owner, if any.
func (t *Tracker) Session(owner OwnerKey) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[owner]
	return s, ok
}

// Recording reports whether any owner key currently holds the microphone.
func (t *Tracker) Recording() bool {
	t.mu.Lock()
	live := t.live
	t.mu.Unlock()
	return live != nil && live.State() == fsm.StateRecording
}

// CloseAll tears down every session. Live captures are stopped and the device
// released; nothing is persisted. Used on view teardown.
func (t *Tracker) CloseAll() error {
	t.mu.Lock()
	sessions := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.sessions = make(map[OwnerKey]*Session)
	t.live = nil
	t.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
