// Package recording implements the per-question audio capture pipeline:
// chunk assembly, container validation, the attempt state machine, and the
// tracker that serialises microphone ownership across owner keys.
//
// A [Session] owns exactly one attempt lifecycle for one [OwnerKey]:
//
//	idle → recording → recorded → uploading → uploaded | upload_failed
//
// with retry (upload_failed → uploading) and redo (→ idle) as the only
// back-edges. Transitions are strictly sequential per session; the exported
// methods serialise on an internal mutex and reject events that are not legal
// in the current state.
//
// Sessions are created through a [Tracker], which enforces the one invariant
// that spans owner keys: at most one live microphone capture at a time.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tavasya/speakdrill/internal/recording/fsm"
	"github.com/Tavasya/speakdrill/pkg/audio"
)

// Uploader commits an attempt's assembled audio. Implemented by the upload
// coordinator; defined here so the session layer does not depend on storage
// packages.
type Uploader interface {
	// Upload stores the encoded audio under a collision-free name and returns
	// the durable remote reference.
	Upload(ctx context.Context, enc EncodedAudio, owner OwnerKey) (string, error)

	// Associate binds the remote reference to one slot of the target entity.
	// Must be idempotent for identical arguments.
	Associate(ctx context.Context, targetID string, owner OwnerKey, ref string) error
}

// Snapshot is a point-in-time view of a session, safe to hand to callbacks.
type Snapshot struct {
	Owner     OwnerKey
	State     fsm.State
	Elapsed   time.Duration
	RemoteRef string
	Err       string
}

// SessionConfig configures one [Session].
type SessionConfig struct {
	// Owner is the logical slot this session records for.
	Owner OwnerKey

	// Mode selects the duration budget class.
	Mode PracticeMode

	// TimeLimit overrides the mode budget when positive.
	TimeLimit time.Duration

	// Constraints are passed to the capture platform on start.
	Constraints audio.Constraints

	// Clock supplies time; nil means the system clock.
	Clock Clock

	// OnTimeUp, when non-nil, fires exactly once if the duration budget
	// expires while recording. Called without internal locks held.
	OnTimeUp func()

	// OnChange, when non-nil, receives a snapshot after every state change.
	// Called without internal locks held.
	OnChange func(Snapshot)
}

// Session is one capture attempt for one owner key. All methods are safe for
// concurrent use; transitions are serialised.
type Session struct {
	cfg   SessionConfig
	clock Clock
	limit time.Duration

	mu           sync.Mutex
	state        fsm.State
	asm          *Assembler
	stream       audio.Stream
	drained      chan struct{}
	timer        Timer
	startedAt    time.Time
	finalElapsed time.Duration
	encoded      EncodedAudio
	hasAudio     bool
	pendingRef   string
	remoteRef    string
	lastErr      error
}

// NewSession creates an idle session. Most callers should go through
// [Tracker.Begin] instead, which also enforces the cross-key capture guard.
func NewSession(cfg SessionConfig) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	limit := cfg.TimeLimit
	if limit <= 0 {
		limit = DefaultBudgets().Limit(cfg.Mode)
	}
	return &Session{
		cfg:   cfg,
		clock: clock,
		limit: limit,
		state: fsm.StateIdle,
		asm:   NewAssembler(),
	}
}

// Owner returns the owner key this session records for.
func (s *Session) Owner() OwnerKey { return s.cfg.Owner }

// State returns the current lifecycle state.
func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed returns the capture duration. It advances only while the session is
// recording and freezes at the value observed when capture stopped.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == fsm.StateRecording {
		return s.clock.Now().Sub(s.startedAt)
	}
	return s.finalElapsed
}

// RemoteRef returns the durable audio reference. Non-empty exactly when the
// session is in the uploaded state.
func (s *Session) RemoteRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteRef
}

// Err returns the last failure recorded on this attempt, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Snapshot returns a point-in-time view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Owner:     s.cfg.Owner,
		State:     s.state,
		Elapsed:   s.finalElapsed,
		RemoteRef: s.remoteRef,
	}
	if s.state == fsm.StateRecording {
		snap.Elapsed = s.clock.Now().Sub(s.startedAt)
	}
	if s.lastErr != nil {
		snap.Err = s.lastErr.Error()
	}
	return snap
}

func (s *Session) notify(snap Snapshot) {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(snap)
	}
}

// Start acquires the microphone and begins capture. The device acquisition
// (permission prompt included) runs outside the session lock; on any failure
// the session stays idle and no stream is leaked.
func (s *Session) Start(ctx context.Context, platform audio.Platform) error {
	s.mu.Lock()
	if _, err := fsm.Transition(s.state, fsm.EventStart); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	stream, err := platform.Acquire(ctx, s.cfg.Constraints)
	if err != nil {
		return fmt.Errorf("recording: acquire: %w", err)
	}

	s.mu.Lock()
	next, err := fsm.Transition(s.state, fsm.EventStart)
	if err != nil {
		// State moved underneath us while the permission prompt was open.
		s.mu.Unlock()
		_ = stream.Close()
		return err
	}
	s.state = next
	s.asm.Begin()
	s.encoded = EncodedAudio{}
	s.hasAudio = false
	s.pendingRef = ""
	s.remoteRef = ""
	s.lastErr = nil
	s.stream = stream
	s.startedAt = s.clock.Now()
	s.finalElapsed = 0
	drained := make(chan struct{})
	s.drained = drained
	s.timer = s.clock.AfterFunc(s.limit, s.timeUp)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	go func() {
		defer close(drained)
		for chunk := range stream.Chunks() {
			s.asm.Append(chunk.Data)
		}
	}()

	s.notify(snap)
	return nil
}

// Stop explicitly ends the capture, releases the device, and assembles the
// recording. On [ErrEmptyRecording] the session returns to idle; on
// [ErrInvalidRecording] it enters the failed state and only redo leaves it.
func (s *Session) Stop() error {
	return s.finishCapture(fsm.EventStop)
}

// timeUp is the budget timer callback. It behaves exactly like an explicit
// stop; losing the race against Stop is harmless because the transition is
// then rejected.
func (s *Session) timeUp() {
	if err := s.finishCapture(fsm.EventTimeUp); err != nil {
		return
	}
	if s.cfg.OnTimeUp != nil {
		s.cfg.OnTimeUp()
	}
}

func (s *Session) finishCapture(event fsm.Event) error {
	s.mu.Lock()
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	s.finalElapsed = s.clock.Now().Sub(s.startedAt)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	stream := s.stream
	s.stream = nil
	drained := s.drained
	s.drained = nil
	s.mu.Unlock()

	// Release the device on every path, then wait for the drain goroutine so
	// no chunk is lost between stop and finalize.
	if stream != nil {
		if cerr := stream.Close(); cerr != nil {
			slog.Warn("recording: stream close", "owner", s.cfg.Owner, "err", cerr)
		}
	}
	if drained != nil {
		<-drained
	}

	enc, ferr := s.asm.Finalize()
	if ferr == nil {
		enc, ferr = ValidateAndRepair(enc)
	}

	s.mu.Lock()
	switch {
	case ferr == nil:
		s.encoded = enc
		s.hasAudio = true
		s.lastErr = nil
	case errors.Is(ferr, ErrEmptyRecording):
		s.state, _ = fsm.Transition(s.state, fsm.EventRedo)
		s.lastErr = ferr
	default:
		s.state, _ = fsm.Transition(s.state, fsm.EventInvalid)
		s.lastErr = ferr
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return ferr
}

// Upload commits the assembled audio: blob upload, then slot association on
// targetID. Network I/O runs outside the session lock; the state machine
// guarantees at most one round trip is in flight.
func (s *Session) Upload(ctx context.Context, up Uploader, targetID string) error {
	return s.runUpload(ctx, up, targetID, fsm.EventUploadBegin)
}

// Retry re-runs a failed upload round trip. When the previous attempt
// uploaded the blob but failed to associate it, only the association is
// retried — the audio is not uploaded twice.
func (s *Session) Retry(ctx context.Context, up Uploader, targetID string) error {
	return s.runUpload(ctx, up, targetID, fsm.EventRetry)
}

func (s *Session) runUpload(ctx context.Context, up Uploader, targetID string, begin fsm.Event) error {
	s.mu.Lock()
	if !s.hasAudio {
		s.mu.Unlock()
		return ErrNoRecording
	}
	next, err := fsm.Transition(s.state, begin)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	enc := s.encoded
	ref := s.pendingRef
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	var upErr error
	if ref == "" {
		ref, upErr = up.Upload(ctx, enc, s.cfg.Owner)
	}
	if upErr == nil {
		upErr = up.Associate(ctx, targetID, s.cfg.Owner, ref)
	}

	s.mu.Lock()
	if upErr != nil {
		s.state, _ = fsm.Transition(s.state, fsm.EventUploadErr)
		s.lastErr = upErr
		// Blob upload succeeded but association did not: keep the reference
		// so Retry can associate without re-uploading.
		s.pendingRef = ref
	} else {
		s.state, _ = fsm.Transition(s.state, fsm.EventUploadOK)
		s.remoteRef = ref
		s.pendingRef = ""
		s.lastErr = nil
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	if upErr != nil {
		return fmt.Errorf("recording: upload owner %q: %w", s.cfg.Owner, upErr)
	}
	return nil
}

// Redo discards the attempt and returns the session to idle, clearing the
// local encoded audio. Rejected with [ErrUploadInFlight] while an upload
// round trip is pending.
func (s *Session) Redo() error {
	s.mu.Lock()
	if s.state == fsm.StateUploading {
		s.mu.Unlock()
		return ErrUploadInFlight
	}
	next, err := fsm.Transition(s.state, fsm.EventRedo)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	wasRecording := s.state == fsm.StateRecording
	s.state = next
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	stream := s.stream
	s.stream = nil
	drained := s.drained
	s.drained = nil
	s.encoded = EncodedAudio{}
	s.hasAudio = false
	s.pendingRef = ""
	s.remoteRef = ""
	s.lastErr = nil
	s.finalElapsed = 0
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	if wasRecording && drained != nil {
		<-drained
	}
	s.notify(snap)
	return nil
}

// Close tears the session down on owner teardown. A live capture is stopped
// and the device released; the attempt is discarded without persisting.
// Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state != fsm.StateRecording {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.Redo()
}
