package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Tavasya/speakdrill/pkg/store"
)

// statusEvent is one message pushed over the status WebSocket. Record carries
// the full refreshed record so clients never have to poll after a push.
type statusEvent struct {
	Table  string       `json:"table"`
	ID     string       `json:"id"`
	Status store.Status `json:"status"`
	Record any          `json:"record,omitempty"`
}

// fetchRecord loads the full current record behind a change notification.
func (s *Server) fetchRecord(ctx context.Context, table, id string) (any, store.Status, error) {
	switch table {
	case "submissions":
		sub, err := s.subs.GetSubmission(ctx, id)
		if err != nil {
			return nil, "", err
		}
		slots, err := s.subs.ListSlots(ctx, id)
		if err != nil {
			return nil, "", err
		}
		return s.toSubmissionResponse(ctx, sub, slots), sub.Status, nil
	case "practice_sessions":
		sess, err := s.practices.GetSession(ctx, id)
		if err != nil {
			return nil, "", err
		}
		return s.toPracticeResponse(ctx, sess), sess.Status, nil
	default:
		return nil, "", fmt.Errorf("api: unknown table %q", table)
	}
}

// statusSocket handles GET /v1/status?table=<t>&id=<id>. It upgrades to a
// WebSocket, sends a snapshot of the record, then pushes an event for every
// forward status transition until the client disconnects.
func (s *Server) statusSocket(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	id := r.URL.Query().Get("id")
	if table != "submissions" && table != "practice_sessions" {
		badRequest(w, "table must be submissions or practice_sessions")
		return
	}
	if id == "" {
		badRequest(w, "id is required")
		return
	}

	// Reject before upgrading when the record does not exist.
	record, status, err := s.fetchRecord(r.Context(), table, id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("api: websocket accept", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server closing")

	// CloseRead cancels the returned context once the client goes away.
	ctx := conn.CloseRead(r.Context())

	s.metrics.ActiveSubscriptions.Add(ctx, 1)
	defer s.metrics.ActiveSubscriptions.Add(ctx, -1)

	// A small buffer absorbs bursts; the feed already filters regressions and
	// duplicates, so transitions per record are few.
	updates := make(chan store.Change, 16)
	sub := s.feed.Subscribe(table, id, func(c store.Change) {
		select {
		case updates <- c:
		default:
			slog.Warn("api: status subscriber lagging, dropping change",
				"table", c.Table, "id", c.ID, "status", c.Status)
		}
	})
	defer sub.Unsubscribe()

	// Initial snapshot.
	if err := wsjson.Write(ctx, conn, statusEvent{
		Table:  table,
		ID:     id,
		Status: status,
		Record: record,
	}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case change := <-updates:
			record, _, err := s.fetchRecord(ctx, change.Table, change.ID)
			if err != nil {
				// The push itself still carries the new status.
				if !errors.Is(err, store.ErrNotFound) {
					slog.Warn("api: refresh record after change", "err", err)
				}
			}
			s.metrics.RecordStatusChange(ctx, change.Table, string(change.Status))
			if err := wsjson.Write(ctx, conn, statusEvent{
				Table:  change.Table,
				ID:     change.ID,
				Status: change.Status,
				Record: record,
			}); err != nil {
				return
			}
		}
	}
}
