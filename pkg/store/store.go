// Package store defines the persistent record model of speakdrill: practice
// submissions, their per-question audio slots, and drill practice sessions
// with their server-side processing status.
//
// The primary implementation is
// [github.com/Tavasya/speakdrill/pkg/store/postgres]; the mock subpackage
// provides an in-memory implementation for tests.
//
// Implementations must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Status is the server-side processing status of a record. Statuses are
// ordered; a record's status never moves backwards even when change
// notifications arrive out of order.
type Status string

const (
	// StatusInProgress is the initial status: audio is associated but
	// server-side processing has not started.
	StatusInProgress Status = "in_progress"

	// StatusProcessing means asynchronous processing (assessment, transcript
	// improvement) has started.
	StatusProcessing Status = "processing"

	// StatusCompleted means processing finished and results are available.
	StatusCompleted Status = "completed"

	// StatusFailed means processing failed terminally.
	StatusFailed Status = "failed"
)

// Rank returns the position of s in the status order. Unknown statuses rank
// lowest so they can never overwrite a known one.
func (s Status) Rank() int {
	switch s {
	case StatusInProgress:
		return 1
	case StatusProcessing:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return 0
	}
}

// Supersedes reports whether s may overwrite old. Equal-rank terminal
// statuses do not replace each other; the first terminal status wins.
func (s Status) Supersedes(old Status) bool {
	return s.Rank() > old.Rank()
}

// Submission is one graded attempt at a question set. Its audio lives in
// per-question slots, one [UploadRecord] each.
type Submission struct {
	ID        string
	UserID    string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UploadRecord binds one durable audio reference to one slot of a target
// record. Unique per (TargetID, SlotKey): a later upload for the same slot
// overwrites in place.
type UploadRecord struct {
	TargetID   string
	SlotKey    string
	AudioRef   string
	UploadedAt time.Time
}

// TranscriptEdit is one phrase-level correction recorded with the improved
// transcript. Tagged for JSON because the durable form is a JSON document.
type TranscriptEdit struct {
	Original string `json:"original"`
	Improved string `json:"improved"`
	Reason   string `json:"reason"`
}

// PracticeSession is one drill workflow: the user records against a script,
// the server assesses and improves the transcript asynchronously.
type PracticeSession struct {
	ID                 string
	UserID             string
	Mode               string
	Status             Status
	Transcript         string
	ImprovedTranscript string
	Edits              []TranscriptEdit
	AudioRef           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Change is one status-change notification emitted by the store.
type Change struct {
	// Table names the record kind: "submissions" or "practice_sessions".
	Table string

	// ID is the changed record's id.
	ID string

	// Status is the record's status at notification time.
	Status Status
}

// SubmissionStore persists submissions and their audio slots.
type SubmissionStore interface {
	// CreateSubmission creates a submission in [StatusInProgress] and returns
	// it with its assigned id.
	CreateSubmission(ctx context.Context, userID string) (Submission, error)

	// GetSubmission returns the submission with id, or [ErrNotFound].
	GetSubmission(ctx context.Context, id string) (Submission, error)

	// UpsertSlot writes rec's slot, replacing any previous reference for the
	// same (TargetID, SlotKey). Idempotent for identical records.
	UpsertSlot(ctx context.Context, rec UploadRecord) error

	// ListSlots returns all slots of a submission ordered by slot key.
	ListSlots(ctx context.Context, targetID string) ([]UploadRecord, error)

	// SetSubmissionStatus advances the submission's status. Updates that do
	// not supersede the stored status are ignored; the returned flag reports
	// whether the write was applied.
	SetSubmissionStatus(ctx context.Context, id string, status Status) (bool, error)
}

// PracticeStore persists drill practice sessions.
type PracticeStore interface {
	// CreateSession creates sess in [StatusInProgress] and returns it with its
	// assigned id.
	CreateSession(ctx context.Context, sess PracticeSession) (PracticeSession, error)

	// GetSession returns the session with id, or [ErrNotFound].
	GetSession(ctx context.Context, id string) (PracticeSession, error)

	// SetSessionAudio records the durable audio reference for id.
	SetSessionAudio(ctx context.Context, id, audioRef string) error

	// SetTranscripts stores the raw and improved transcripts for id, together
	// with the edit list shown in the review view.
	SetTranscripts(ctx context.Context, id, transcript, improved string, edits []TranscriptEdit) error

	// SetSessionStatus advances the session's status. Updates that do not
	// supersede the stored status are ignored; the returned flag reports
	// whether the write was applied.
	SetSessionStatus(ctx context.Context, id string, status Status) (bool, error)
}

// Watcher streams status-change notifications for the whole store.
type Watcher interface {
	// Watch returns a channel of change notifications. The channel is closed
	// when ctx is cancelled or the underlying connection fails; callers
	// re-watch to resume. Notifications may arrive out of order or duplicated.
	Watch(ctx context.Context) (<-chan Change, error)
}
