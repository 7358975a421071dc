package recording

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Tavasya/speakdrill/internal/recording/fsm"
	audiomock "github.com/Tavasya/speakdrill/pkg/audio/mock"
)

// fakeUploader implements [Uploader] with scriptable failures and call
// accounting.
type fakeUploader struct {
	mu            sync.Mutex
	uploads       int
	associates    int
	uploadErr     error
	associateFail int // fail this many Associate calls, then succeed
	block         chan struct{}
	refs          map[string]string // (targetID, owner) -> ref, one slot per key
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{refs: make(map[string]string)}
}

func (f *fakeUploader) Upload(_ context.Context, enc EncodedAudio, owner OwnerKey) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "blob://" + string(owner) + "/a.webm", nil
}

func (f *fakeUploader) Associate(_ context.Context, targetID string, owner OwnerKey, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.associates++
	if f.associateFail > 0 {
		f.associateFail--
		return errors.New("persistence unavailable")
	}
	f.refs[targetID+"/"+string(owner)] = ref
	return nil
}

func (f *fakeUploader) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads, f.associates
}

func startedSession(t *testing.T, clock Clock, chunks [][]byte, opts func(*SessionConfig)) (*Session, *audiomock.Platform) {
	t.Helper()
	platform := &audiomock.Platform{ChunkData: chunks}
	cfg := SessionConfig{
		Owner: "q1",
		Mode:  ModeSentence,
		Clock: clock,
	}
	if opts != nil {
		opts(&cfg)
	}
	s := NewSession(cfg)
	if err := s.Start(context.Background(), platform); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s, platform
}

func TestSession_HappyPath(t *testing.T) {
	var (
		mu     sync.Mutex
		states []fsm.State
	)
	clock := newFakeClock()
	s, platform := startedSession(t, clock, [][]byte{validWebM()}, func(c *SessionConfig) {
		c.OnChange = func(snap Snapshot) {
			mu.Lock()
			states = append(states, snap.State)
			mu.Unlock()
		}
	})

	clock.Advance(2 * time.Second)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := s.State(); got != fsm.StateRecorded {
		t.Fatalf("state after stop = %q, want recorded", got)
	}

	up := newFakeUploader()
	if err := s.Upload(context.Background(), up, "sub-1"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got := s.State(); got != fsm.StateUploaded {
		t.Fatalf("state after upload = %q, want uploaded", got)
	}
	if s.RemoteRef() == "" {
		t.Fatal("remote reference empty in uploaded state")
	}
	if platform.OpenStreams() != 0 {
		t.Fatal("capture stream not released")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []fsm.State{fsm.StateRecording, fsm.StateRecorded, fsm.StateUploading, fsm.StateUploaded}
	if len(states) != len(want) {
		t.Fatalf("observed states %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("observed states %v, want %v", states, want)
		}
	}
}

// TestSession_TimeUpAutoStop covers the budget timeout: recording with a 5s
// limit and 19s of virtual time must auto-stop at elapsed 5s with the time-up
// callback firing exactly once.
func TestSession_TimeUpAutoStop(t *testing.T) {
	clock := newFakeClock()
	var fired int
	s, _ := startedSession(t, clock, [][]byte{validWebM()}, func(c *SessionConfig) {
		c.TimeLimit = 5 * time.Second
		c.OnTimeUp = func() { fired++ }
	})

	clock.Advance(19 * time.Second)

	if got := s.State(); got != fsm.StateRecorded {
		t.Fatalf("state = %q, want recorded", got)
	}
	if got := s.Elapsed(); got != 5*time.Second {
		t.Fatalf("elapsed = %v, want 5s", got)
	}
	if fired != 1 {
		t.Fatalf("time-up callback fired %d times, want 1", fired)
	}

	// A late explicit stop must be rejected, not double-finalize.
	if err := s.Stop(); err == nil {
		t.Fatal("Stop after auto-stop should be rejected")
	}
}

func TestSession_EmptyRecordingReturnsToIdle(t *testing.T) {
	clock := newFakeClock()
	s, platform := startedSession(t, clock, nil, nil)

	err := s.Stop()
	if !errors.Is(err, ErrEmptyRecording) {
		t.Fatalf("Stop = %v, want ErrEmptyRecording", err)
	}
	if got := s.State(); got != fsm.StateIdle {
		t.Fatalf("state = %q, want idle", got)
	}
	if platform.OpenStreams() != 0 {
		t.Fatal("stream not released on empty recording")
	}
}

func TestSession_InvalidRecordingIsTerminal(t *testing.T) {
	clock := newFakeClock()
	s, platform := startedSession(t, clock, [][]byte{garbage()}, nil)

	err := s.Stop()
	if !errors.Is(err, ErrInvalidRecording) {
		t.Fatalf("Stop = %v, want ErrInvalidRecording", err)
	}
	if got := s.State(); got != fsm.StateFailed {
		t.Fatalf("state = %q, want failed", got)
	}
	if platform.OpenStreams() != 0 {
		t.Fatal("stream not released on invalid recording")
	}

	up := newFakeUploader()
	if err := s.Upload(context.Background(), up, "sub-1"); err == nil {
		t.Fatal("upload from failed state must be rejected")
	}
	if err := s.Redo(); err != nil {
		t.Fatalf("Redo from failed: %v", err)
	}
	if got := s.State(); got != fsm.StateIdle {
		t.Fatalf("state after redo = %q, want idle", got)
	}
}

func TestSession_UploadFailureThenRetry(t *testing.T) {
	clock := newFakeClock()
	s, _ := startedSession(t, clock, [][]byte{validWebM()}, nil)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	up := newFakeUploader()
	up.uploadErr = errors.New("storage unreachable")
	if err := s.Upload(context.Background(), up, "sub-1"); err == nil {
		t.Fatal("Upload should fail")
	}
	if got := s.State(); got != fsm.StateUploadFailed {
		t.Fatalf("state = %q, want upload_failed", got)
	}
	if s.Err() == nil {
		t.Fatal("failure reason not recorded")
	}

	up.mu.Lock()
	up.uploadErr = nil
	up.mu.Unlock()
	if err := s.Retry(context.Background(), up, "sub-1"); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if got := s.State(); got != fsm.StateUploaded {
		t.Fatalf("state = %q, want uploaded", got)
	}
}

// TestSession_AssociateRetrySkipsReupload covers the orphaned-blob case: the
// blob upload succeeded, the association failed, and a retry must associate
// the existing reference without uploading the audio a second time.
func TestSession_AssociateRetrySkipsReupload(t *testing.T) {
	clock := newFakeClock()
	s, _ := startedSession(t, clock, [][]byte{validWebM()}, nil)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	up := newFakeUploader()
	up.associateFail = 1
	if err := s.Upload(context.Background(), up, "sub-1"); err == nil {
		t.Fatal("Upload should surface the association failure")
	}
	if got := s.State(); got != fsm.StateUploadFailed {
		t.Fatalf("state = %q, want upload_failed", got)
	}

	if err := s.Retry(context.Background(), up, "sub-1"); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	uploads, associates := up.counts()
	if uploads != 1 {
		t.Fatalf("blob uploaded %d times, want 1", uploads)
	}
	if associates != 2 {
		t.Fatalf("associate called %d times, want 2", associates)
	}
	if len(up.refs) != 1 {
		t.Fatalf("target holds %d slots, want exactly 1", len(up.refs))
	}
	if got := s.RemoteRef(); got == "" {
		t.Fatal("remote reference empty after successful retry")
	}
}

func TestSession_RedoRejectedMidUpload(t *testing.T) {
	clock := newFakeClock()
	s, _ := startedSession(t, clock, [][]byte{validWebM()}, nil)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	up := newFakeUploader()
	up.block = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.Upload(context.Background(), up, "sub-1") }()

	// Wait until the round trip is actually in flight.
	for s.State() != fsm.StateUploading {
		time.Sleep(time.Millisecond)
	}
	if err := s.Redo(); !errors.Is(err, ErrUploadInFlight) {
		t.Fatalf("Redo mid-upload = %v, want ErrUploadInFlight", err)
	}

	close(up.block)
	if err := <-done; err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := s.Redo(); err != nil {
		t.Fatalf("Redo after upload: %v", err)
	}
	if got := s.State(); got != fsm.StateIdle {
		t.Fatalf("state = %q, want idle", got)
	}
	if s.RemoteRef() != "" {
		t.Fatal("redo must clear the remote reference")
	}
}

func TestSession_ElapsedAdvancesOnlyWhileRecording(t *testing.T) {
	clock := newFakeClock()
	s, _ := startedSession(t, clock, [][]byte{validWebM()}, func(c *SessionConfig) {
		c.TimeLimit = time.Minute
	})

	clock.Advance(3 * time.Second)
	if got := s.Elapsed(); got != 3*time.Second {
		t.Fatalf("elapsed while recording = %v, want 3s", got)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	clock.Advance(10 * time.Second)
	if got := s.Elapsed(); got != 3*time.Second {
		t.Fatalf("elapsed after stop = %v, want frozen at 3s", got)
	}
}
