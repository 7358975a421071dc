// Package postgres implements the speakdrill store interfaces on PostgreSQL
// via pgx. Status-change notifications ride on LISTEN/NOTIFY: row triggers
// emit a JSON payload on the speakdrill_changes channel and [Store.Watch]
// turns it into [store.Change] values.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tavasya/speakdrill/pkg/store"
)

const notifyChannel = "speakdrill_changes"

// statusRank mirrors [store.Status.Rank] in SQL so monotonic updates happen
// in a single statement.
const statusRank = `CASE status WHEN 'in_progress' THEN 1 WHEN 'processing' THEN 2 WHEN 'completed' THEN 3 WHEN 'failed' THEN 3 ELSE 0 END`

// Store implements [store.SubmissionStore], [store.PracticeStore], and
// [store.Watcher] on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ store.SubmissionStore = (*Store)(nil)
	_ store.PracticeStore   = (*Store)(nil)
	_ store.Watcher         = (*Store)(nil)
)

// New connects to dsn and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Pool exposes the underlying connection pool for health checks.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Migrate creates the schema and the notification triggers. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id         UUID PRIMARY KEY,
			user_id    TEXT NOT NULL,
			status     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS submission_slots (
			submission_id UUID NOT NULL REFERENCES submissions(id),
			slot_key      TEXT NOT NULL,
			audio_ref     TEXT NOT NULL,
			uploaded_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (submission_id, slot_key)
		)`,
		`CREATE TABLE IF NOT EXISTS practice_sessions (
			id                  UUID PRIMARY KEY,
			user_id             TEXT NOT NULL,
			mode                TEXT NOT NULL,
			status              TEXT NOT NULL,
			transcript          TEXT NOT NULL DEFAULT '',
			improved_transcript TEXT NOT NULL DEFAULT '',
			edits               JSONB NOT NULL DEFAULT '[]',
			audio_ref           TEXT NOT NULL DEFAULT '',
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE OR REPLACE FUNCTION speakdrill_notify_status() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('` + notifyChannel + `', json_build_object(
				'table', TG_TABLE_NAME, 'id', NEW.id, 'status', NEW.status)::text);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS submissions_status_notify ON submissions`,
		`CREATE TRIGGER submissions_status_notify
			AFTER INSERT OR UPDATE OF status ON submissions
			FOR EACH ROW EXECUTE FUNCTION speakdrill_notify_status()`,
		`DROP TRIGGER IF EXISTS practice_sessions_status_notify ON practice_sessions`,
		`CREATE TRIGGER practice_sessions_status_notify
			AFTER INSERT OR UPDATE OF status ON practice_sessions
			FOR EACH ROW EXECUTE FUNCTION speakdrill_notify_status()`,
		`ALTER TABLE practice_sessions ADD COLUMN IF NOT EXISTS edits JSONB NOT NULL DEFAULT '[]'`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

// CreateSubmission implements [store.SubmissionStore].
func (s *Store) CreateSubmission(ctx context.Context, userID string) (store.Submission, error) {
	sub := store.Submission{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: store.StatusInProgress,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO submissions (id, user_id, status) VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		sub.ID, sub.UserID, sub.Status,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return store.Submission{}, fmt.Errorf("postgres: create submission: %w", err)
	}
	return sub, nil
}

// GetSubmission implements [store.SubmissionStore].
func (s *Store) GetSubmission(ctx context.Context, id string) (store.Submission, error) {
	var sub store.Submission
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, status, created_at, updated_at FROM submissions WHERE id = $1`, id,
	).Scan(&sub.ID, &sub.UserID, &sub.Status, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Submission{}, store.ErrNotFound
	}
	if err != nil {
		return store.Submission{}, fmt.Errorf("postgres: get submission %q: %w", id, err)
	}
	return sub, nil
}

// UpsertSlot implements [store.SubmissionStore]. A later upload for the same
// (submission, slot) pair replaces the stored reference in place.
func (s *Store) UpsertSlot(ctx context.Context, rec store.UploadRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO submission_slots (submission_id, slot_key, audio_ref, uploaded_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (submission_id, slot_key)
		 DO UPDATE SET audio_ref = EXCLUDED.audio_ref, uploaded_at = now()`,
		rec.TargetID, rec.SlotKey, rec.AudioRef)
	if err != nil {
		return fmt.Errorf("postgres: upsert slot %q/%q: %w", rec.TargetID, rec.SlotKey, err)
	}
	return nil
}

// ListSlots implements [store.SubmissionStore].
func (s *Store) ListSlots(ctx context.Context, targetID string) ([]store.UploadRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT submission_id, slot_key, audio_ref, uploaded_at
		 FROM submission_slots WHERE submission_id = $1 ORDER BY slot_key`, targetID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list slots %q: %w", targetID, err)
	}
	defer rows.Close()

	var recs []store.UploadRecord
	for rows.Next() {
		var rec store.UploadRecord
		if err := rows.Scan(&rec.TargetID, &rec.SlotKey, &rec.AudioRef, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan slot: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list slots %q: %w", targetID, err)
	}
	return recs, nil
}

// SetSubmissionStatus implements [store.SubmissionStore].
func (s *Store) SetSubmissionStatus(ctx context.Context, id string, status store.Status) (bool, error) {
	return s.setStatus(ctx, "submissions", id, status)
}

// editsJSON renders edits as the JSONB document stored on the session row.
func editsJSON(edits []store.TranscriptEdit) ([]byte, error) {
	if len(edits) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(edits)
}

// CreateSession implements [store.PracticeStore].
func (s *Store) CreateSession(ctx context.Context, sess store.PracticeSession) (store.PracticeSession, error) {
	sess.ID = uuid.NewString()
	sess.Status = store.StatusInProgress
	edits, err := editsJSON(sess.Edits)
	if err != nil {
		return store.PracticeSession{}, fmt.Errorf("postgres: encode edits: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO practice_sessions (id, user_id, mode, status, transcript, improved_transcript, edits, audio_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		sess.ID, sess.UserID, sess.Mode, sess.Status, sess.Transcript, sess.ImprovedTranscript, edits, sess.AudioRef,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return store.PracticeSession{}, fmt.Errorf("postgres: create practice session: %w", err)
	}
	return sess, nil
}

// GetSession implements [store.PracticeStore].
func (s *Store) GetSession(ctx context.Context, id string) (store.PracticeSession, error) {
	var (
		sess  store.PracticeSession
		edits []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, mode, status, transcript, improved_transcript, edits, audio_ref, created_at, updated_at
		 FROM practice_sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.Mode, &sess.Status, &sess.Transcript,
		&sess.ImprovedTranscript, &edits, &sess.AudioRef, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.PracticeSession{}, store.ErrNotFound
	}
	if err != nil {
		return store.PracticeSession{}, fmt.Errorf("postgres: get practice session %q: %w", id, err)
	}
	if err := json.Unmarshal(edits, &sess.Edits); err != nil {
		return store.PracticeSession{}, fmt.Errorf("postgres: decode edits %q: %w", id, err)
	}
	if len(sess.Edits) == 0 {
		sess.Edits = nil
	}
	return sess, nil
}

// SetSessionAudio implements [store.PracticeStore].
func (s *Store) SetSessionAudio(ctx context.Context, id, audioRef string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE practice_sessions SET audio_ref = $2, updated_at = now() WHERE id = $1`, id, audioRef)
	if err != nil {
		return fmt.Errorf("postgres: set session audio %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetTranscripts implements [store.PracticeStore].
func (s *Store) SetTranscripts(ctx context.Context, id, transcript, improved string, edits []store.TranscriptEdit) error {
	doc, err := editsJSON(edits)
	if err != nil {
		return fmt.Errorf("postgres: encode edits %q: %w", id, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE practice_sessions SET transcript = $2, improved_transcript = $3, edits = $4, updated_at = now() WHERE id = $1`,
		id, transcript, improved, doc)
	if err != nil {
		return fmt.Errorf("postgres: set transcripts %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetSessionStatus implements [store.PracticeStore].
func (s *Store) SetSessionStatus(ctx context.Context, id string, status store.Status) (bool, error) {
	return s.setStatus(ctx, "practice_sessions", id, status)
}

// setStatus advances a record's status in one statement. The rank comparison
// happens in SQL so concurrent writers cannot interleave a regression.
func (s *Store) setStatus(ctx context.Context, table, id string, status store.Status) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+table+` SET status = $2, updated_at = now()
		 WHERE id = $1 AND `+statusRank+` < $3`,
		id, status, status.Rank())
	if err != nil {
		return false, fmt.Errorf("postgres: set %s status %q: %w", table, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// notifyPayload is the JSON document emitted by the status triggers.
type notifyPayload struct {
	Table  string `json:"table"`
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Watch implements [store.Watcher]. It holds one dedicated connection on
// LISTEN and forwards notifications until ctx is cancelled or the connection
// drops, then closes the channel.
func (s *Store) Watch(ctx context.Context) (<-chan store.Change, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: watch acquire: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("postgres: listen: %w", err)
	}

	out := make(chan store.Change, 16)
	go func() {
		defer close(out)
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("postgres: watch connection lost", "err", err)
				}
				return
			}
			var p notifyPayload
			if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
				slog.Warn("postgres: bad notification payload", "payload", n.Payload, "err", err)
				continue
			}
			select {
			case out <- store.Change{Table: p.Table, ID: p.ID, Status: store.Status(p.Status)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
