// Package uploader commits assembled recordings: it writes the encoded audio
// to blob storage under a collision-free key and binds the resulting durable
// reference to one slot of the target record.
//
// Two coordinators share the blob path: [Coordinator] targets submission
// slots, [PracticeCoordinator] targets a practice session's single audio
// reference. Both satisfy [recording.Uploader].
package uploader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/google/uuid"

	"github.com/Tavasya/speakdrill/internal/recording"
	"github.com/Tavasya/speakdrill/pkg/blob"
	"github.com/Tavasya/speakdrill/pkg/store"
)

// Failure classes surfaced to the session layer. Callers match with
// [errors.Is].
var (
	// ErrStorage wraps blob storage failures.
	ErrStorage = errors.New("uploader: storage error")

	// ErrAuth wraps credential or authorization failures on the blob store.
	ErrAuth = errors.New("uploader: auth error")

	// ErrPersistence wraps failures binding the reference to the target record.
	ErrPersistence = errors.New("uploader: persistence error")
)

// authCodes are AWS error codes treated as credential failures rather than
// transient storage errors.
var authCodes = map[string]bool{
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"ExpiredToken":          true,
}

func classifyStorage(err error) error {
	var aerr awserr.Error
	if errors.As(err, &aerr) && authCodes[aerr.Code()] {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

// objectKey builds a collision-free blob key for one attempt. Concurrent
// attempts for different owner keys, and repeated attempts for the same key,
// never collide: the key embeds the owner, a nanosecond timestamp, and a
// random suffix.
func objectKey(owner recording.OwnerKey, now time.Time) string {
	return fmt.Sprintf("recordings/%s/%d-%s.webm", owner, now.UnixNano(), uuid.NewString())
}

func putBlob(ctx context.Context, blobs blob.Store, enc recording.EncodedAudio, owner recording.OwnerKey, now func() time.Time) (string, error) {
	obj, err := blobs.Put(ctx, objectKey(owner, now()), enc.Data, enc.MIME)
	if err != nil {
		return "", classifyStorage(err)
	}
	return obj.Ref, nil
}

// Option configures a coordinator.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithNow injects the timestamp source used for object naming, for tests.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Coordinator uploads attempt audio and binds it to submission slots. One
// slot per (submission, owner key); re-uploads replace the slot in place.
type Coordinator struct {
	blobs blob.Store
	subs  store.SubmissionStore
	now   func() time.Time
}

var _ recording.Uploader = (*Coordinator)(nil)

// New creates a submission-slot coordinator.
func New(blobs blob.Store, subs store.SubmissionStore, opts ...Option) *Coordinator {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Coordinator{blobs: blobs, subs: subs, now: o.now}
}

// Upload implements [recording.Uploader].
func (c *Coordinator) Upload(ctx context.Context, enc recording.EncodedAudio, owner recording.OwnerKey) (string, error) {
	return putBlob(ctx, c.blobs, enc, owner, c.now)
}

// Associate implements [recording.Uploader]. The slot write is an upsert:
// the first call for a (submission, owner) pair creates the slot, later calls
// replace it in place, and repeating a call with identical arguments leaves
// the stored state unchanged.
func (c *Coordinator) Associate(ctx context.Context, targetID string, owner recording.OwnerKey, ref string) error {
	err := c.subs.UpsertSlot(ctx, store.UploadRecord{
		TargetID: targetID,
		SlotKey:  string(owner),
		AudioRef: ref,
	})
	if err != nil {
		return fmt.Errorf("%w: slot %q/%q: %v", ErrPersistence, targetID, owner, err)
	}
	return nil
}

// PracticeCoordinator uploads drill audio and binds it to a practice
// session's audio reference.
type PracticeCoordinator struct {
	blobs     blob.Store
	practices store.PracticeStore
	now       func() time.Time
}

var _ recording.Uploader = (*PracticeCoordinator)(nil)

// NewPractice creates a practice-session coordinator.
func NewPractice(blobs blob.Store, practices store.PracticeStore, opts ...Option) *PracticeCoordinator {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &PracticeCoordinator{blobs: blobs, practices: practices, now: o.now}
}

// Upload implements [recording.Uploader].
func (c *PracticeCoordinator) Upload(ctx context.Context, enc recording.EncodedAudio, owner recording.OwnerKey) (string, error) {
	return putBlob(ctx, c.blobs, enc, owner, c.now)
}

// Associate implements [recording.Uploader]. Idempotent: re-writing the same
// reference leaves the session unchanged.
func (c *PracticeCoordinator) Associate(ctx context.Context, targetID string, _ recording.OwnerKey, ref string) error {
	if err := c.practices.SetSessionAudio(ctx, targetID, ref); err != nil {
		return fmt.Errorf("%w: session %q: %v", ErrPersistence, targetID, err)
	}
	return nil
}
