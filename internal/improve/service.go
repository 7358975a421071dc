package improve

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tavasya/speakdrill/pkg/store"
)

const runTimeout = 2 * time.Minute

// Service runs transcript improvement against the practice store. The
// caller's acknowledgement carries no result; the improved transcript lands
// in the store and reaches subscribers through the status feed.
type Service struct {
	improver  *Improver
	practices store.PracticeStore
	wg        sync.WaitGroup
}

// NewService creates a Service writing results through practices.
func NewService(improver *Improver, practices store.PracticeStore) *Service {
	return &Service{improver: improver, practices: practices}
}

// Request triggers improvement for the practice session. It validates the
// session, marks it processing, and returns; the improvement itself runs in
// the background detached from ctx.
func (s *Service) Request(ctx context.Context, sessionID string) error {
	sess, err := s.practices.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("improve: request %q: %w", sessionID, err)
	}
	if _, err := s.practices.SetSessionStatus(ctx, sessionID, store.StatusProcessing); err != nil {
		return fmt.Errorf("improve: request %q: %w", sessionID, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(sess)
	}()
	return nil
}

func (s *Service) run(sess store.PracticeSession) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	improved, edits, err := s.improver.Improve(ctx, sess.Transcript)
	if err != nil {
		slog.Error("improve: session failed", "session", sess.ID, "err", err)
		if _, serr := s.practices.SetSessionStatus(ctx, sess.ID, store.StatusFailed); serr != nil {
			slog.Error("improve: mark failed", "session", sess.ID, "err", serr)
		}
		return
	}

	stored := make([]store.TranscriptEdit, 0, len(edits))
	for _, e := range edits {
		stored = append(stored, store.TranscriptEdit{Original: e.Original, Improved: e.Improved, Reason: e.Reason})
	}
	if err := s.practices.SetTranscripts(ctx, sess.ID, sess.Transcript, improved, stored); err != nil {
		slog.Error("improve: store transcripts", "session", sess.ID, "err", err)
		if _, serr := s.practices.SetSessionStatus(ctx, sess.ID, store.StatusFailed); serr != nil {
			slog.Error("improve: mark failed", "session", sess.ID, "err", serr)
		}
		return
	}
	if _, err := s.practices.SetSessionStatus(ctx, sess.ID, store.StatusCompleted); err != nil {
		slog.Error("improve: mark completed", "session", sess.ID, "err", err)
		return
	}
	slog.Info("improve: session completed", "session", sess.ID, "edits", len(edits))
}

// Wait blocks until all in-flight improvements have finished. Used on
// shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}
