// Package mock provides in-memory implementations of the store interfaces
// for tests.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Tavasya/speakdrill/pkg/store"
)

// Store is an in-memory record store implementing [store.SubmissionStore],
// [store.PracticeStore], and [store.Watcher]. UpsertErr, when non-nil, makes
// slot writes fail.
type Store struct {
	UpsertErr error

	mu          sync.Mutex
	nextID      int
	submissions map[string]store.Submission
	slots       map[string]map[string]store.UploadRecord // targetID -> slotKey -> record
	sessions    map[string]store.PracticeSession
	upserts     int
	watchers    []chan store.Change
}

var (
	_ store.SubmissionStore = (*Store)(nil)
	_ store.PracticeStore   = (*Store)(nil)
	_ store.Watcher         = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		submissions: make(map[string]store.Submission),
		slots:       make(map[string]map[string]store.UploadRecord),
		sessions:    make(map[string]store.PracticeSession),
	}
}

func (s *Store) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

// CreateSubmission implements [store.SubmissionStore].
func (s *Store) CreateSubmission(_ context.Context, userID string) (store.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sub := store.Submission{
		ID:        s.id("sub"),
		UserID:    userID,
		Status:    store.StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.submissions[sub.ID] = sub
	return sub, nil
}

// GetSubmission implements [store.SubmissionStore].
func (s *Store) GetSubmission(_ context.Context, id string) (store.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return store.Submission{}, store.ErrNotFound
	}
	return sub, nil
}

// UpsertSlot implements [store.SubmissionStore].
func (s *Store) UpsertSlot(_ context.Context, rec store.UploadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	byKey, ok := s.slots[rec.TargetID]
	if !ok {
		byKey = make(map[string]store.UploadRecord)
		s.slots[rec.TargetID] = byKey
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now()
	}
	byKey[rec.SlotKey] = rec
	return nil
}

// ListSlots implements [store.SubmissionStore].
func (s *Store) ListSlots(_ context.Context, targetID string) ([]store.UploadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := s.slots[targetID]
	recs := make([]store.UploadRecord, 0, len(byKey))
	for _, rec := range byKey {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].SlotKey < recs[j].SlotKey })
	return recs, nil
}

// SetSubmissionStatus implements [store.SubmissionStore].
func (s *Store) SetSubmissionStatus(_ context.Context, id string, status store.Status) (bool, error) {
	s.mu.Lock()
	sub, ok := s.submissions[id]
	if !ok {
		s.mu.Unlock()
		return false, store.ErrNotFound
	}
	if !status.Supersedes(sub.Status) {
		s.mu.Unlock()
		return false, nil
	}
	sub.Status = status
	sub.UpdatedAt = time.Now()
	s.submissions[id] = sub
	s.mu.Unlock()
	s.Notify(store.Change{Table: "submissions", ID: id, Status: status})
	return true, nil
}

// CreateSession implements [store.PracticeStore].
func (s *Store) CreateSession(_ context.Context, sess store.PracticeSession) (store.PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sess.ID = s.id("ps")
	sess.Status = store.StatusInProgress
	sess.CreatedAt = now
	sess.UpdatedAt = now
	s.sessions[sess.ID] = sess
	return sess, nil
}

// GetSession implements [store.PracticeStore].
func (s *Store) GetSession(_ context.Context, id string) (store.PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.PracticeSession{}, store.ErrNotFound
	}
	return sess, nil
}

// SetSessionAudio implements [store.PracticeStore].
func (s *Store) SetSessionAudio(_ context.Context, id, audioRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.AudioRef = audioRef
	sess.UpdatedAt = time.Now()
	s.sessions[id] = sess
	return nil
}

// SetTranscripts implements [store.PracticeStore].
func (s *Store) SetTranscripts(_ context.Context, id, transcript, improved string, edits []store.TranscriptEdit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.Transcript = transcript
	sess.ImprovedTranscript = improved
	sess.Edits = edits
	sess.UpdatedAt = time.Now()
	s.sessions[id] = sess
	return nil
}

// SetSessionStatus implements [store.PracticeStore].
func (s *Store) SetSessionStatus(_ context.Context, id string, status store.Status) (bool, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false, store.ErrNotFound
	}
	if !status.Supersedes(sess.Status) {
		s.mu.Unlock()
		return false, nil
	}
	sess.Status = status
	sess.UpdatedAt = time.Now()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.Notify(store.Change{Table: "practice_sessions", ID: id, Status: status})
	return true, nil
}

// Watch implements [store.Watcher].
func (s *Store) Watch(ctx context.Context) (<-chan store.Change, error) {
	ch := make(chan store.Change, 16)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				close(ch)
				break
			}
		}
		s.mu.Unlock()
	}()
	return ch, nil
}

// Notify pushes a raw change to every watcher. Tests use it to simulate
// out-of-order or duplicated notifications.
func (s *Store) Notify(c store.Change) {
	s.mu.Lock()
	watchers := make([]chan store.Change, len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()
	for _, w := range watchers {
		w <- c
	}
}

// Upserts returns the number of UpsertSlot calls, including failed ones.
func (s *Store) Upserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

// SlotCount returns how many slots target holds.
func (s *Store) SlotCount(targetID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots[targetID])
}
