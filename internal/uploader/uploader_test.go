package uploader

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Tavasya/speakdrill/internal/recording"
	blobmock "github.com/Tavasya/speakdrill/pkg/blob/mock"
	"github.com/Tavasya/speakdrill/pkg/store"
	storemock "github.com/Tavasya/speakdrill/pkg/store/mock"
)

func testAudio() recording.EncodedAudio {
	return recording.EncodedAudio{Data: []byte{0x1A, 0x45, 0xDF, 0xA3}, MIME: "audio/webm"}
}

func TestCoordinator_UploadNamesAreCollisionFree(t *testing.T) {
	blobs := blobmock.New()
	c := New(blobs, storemock.New())

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		ref, err := c.Upload(context.Background(), testAudio(), "q1")
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
		if seen[ref] {
			t.Fatalf("reference %q issued twice", ref)
		}
		seen[ref] = true
	}
	if blobs.Len() != 5 {
		t.Fatalf("stored %d objects, want 5", blobs.Len())
	}
	for ref := range seen {
		if !strings.Contains(ref, "recordings/q1/") {
			t.Fatalf("reference %q does not embed the owner key", ref)
		}
	}
}

func TestCoordinator_UploadSameInstant(t *testing.T) {
	// Even with a frozen clock the random suffix keeps keys distinct.
	fixed := time.Unix(1700000000, 0)
	blobs := blobmock.New()
	c := New(blobs, storemock.New(), WithNow(func() time.Time { return fixed }))

	a, err := c.Upload(context.Background(), testAudio(), "q1")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	b, err := c.Upload(context.Background(), testAudio(), "q1")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if a == b {
		t.Fatalf("two uploads at the same instant share reference %q", a)
	}
}

func TestCoordinator_UploadStorageError(t *testing.T) {
	blobs := blobmock.New()
	blobs.PutErr = errors.New("bucket unreachable")
	c := New(blobs, storemock.New())

	_, err := c.Upload(context.Background(), testAudio(), "q1")
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("Upload = %v, want ErrStorage", err)
	}
}

// TestCoordinator_AssociateIdempotent covers the retry-after-partial-failure
// requirement: repeating Associate with identical arguments leaves exactly
// one slot, unchanged.
func TestCoordinator_AssociateIdempotent(t *testing.T) {
	records := storemock.New()
	c := New(blobmock.New(), records)

	sub, err := records.CreateSubmission(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := c.Associate(context.Background(), sub.ID, "q1", "s3://b/a.webm"); err != nil {
			t.Fatalf("Associate #%d: %v", i+1, err)
		}
	}

	slots, err := records.ListSlots(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("ListSlots: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("slot count = %d, want 1", len(slots))
	}
	if slots[0].SlotKey != "q1" || slots[0].AudioRef != "s3://b/a.webm" {
		t.Fatalf("slot = %+v", slots[0])
	}
}

func TestCoordinator_AssociateReplacesSlotInPlace(t *testing.T) {
	records := storemock.New()
	c := New(blobmock.New(), records)

	sub, _ := records.CreateSubmission(context.Background(), "user-1")
	if err := c.Associate(context.Background(), sub.ID, "q1", "s3://b/first.webm"); err != nil {
		t.Fatalf("Associate: %v", err)
	}
	if err := c.Associate(context.Background(), sub.ID, "q1", "s3://b/redo.webm"); err != nil {
		t.Fatalf("Associate redo: %v", err)
	}

	slots, _ := records.ListSlots(context.Background(), sub.ID)
	if len(slots) != 1 {
		t.Fatalf("slot count = %d, want 1 (redo must not append)", len(slots))
	}
	if slots[0].AudioRef != "s3://b/redo.webm" {
		t.Fatalf("slot ref = %q, want the redo reference", slots[0].AudioRef)
	}
}

func TestCoordinator_AssociatePersistenceError(t *testing.T) {
	records := storemock.New()
	records.UpsertErr = errors.New("connection refused")
	c := New(blobmock.New(), records)

	err := c.Associate(context.Background(), "sub-1", "q1", "s3://b/a.webm")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Associate = %v, want ErrPersistence", err)
	}
}

func TestPracticeCoordinator_Associate(t *testing.T) {
	records := storemock.New()
	c := NewPractice(blobmock.New(), records)

	sess, err := records.CreateSession(context.Background(), store.PracticeSession{UserID: "user-1", Mode: "sentence"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := c.Associate(context.Background(), sess.ID, "drill", "s3://b/p.webm"); err != nil {
		t.Fatalf("Associate: %v", err)
	}

	got, err := records.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.AudioRef != "s3://b/p.webm" {
		t.Fatalf("session audio ref = %q", got.AudioRef)
	}

	err = c.Associate(context.Background(), "missing", "drill", "s3://b/p.webm")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Associate missing session = %v, want ErrPersistence", err)
	}
}
