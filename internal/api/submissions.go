package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Tavasya/speakdrill/internal/recording"
	"github.com/Tavasya/speakdrill/pkg/store"
)

// submissionResponse is the JSON shape of a submission, with its slots when
// requested individually.
type submissionResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Status    store.Status   `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Slots     []slotResponse `json:"slots,omitempty"`
}

type slotResponse struct {
	SlotKey    string    `json:"slot_key"`
	AudioRef   string    `json:"audio_ref"`
	AudioURL   string    `json:"audio_url,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (s *Server) toSubmissionResponse(ctx context.Context, sub store.Submission, slots []store.UploadRecord) submissionResponse {
	resp := submissionResponse{
		ID:        sub.ID,
		UserID:    sub.UserID,
		Status:    sub.Status,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
	for _, rec := range slots {
		resp.Slots = append(resp.Slots, slotResponse{
			SlotKey:    rec.SlotKey,
			AudioRef:   rec.AudioRef,
			AudioURL:   s.audioURL(ctx, rec.AudioRef),
			UploadedAt: rec.UploadedAt,
		})
	}
	return resp
}

// validateUpload runs container validation and repair over an uploaded WebM
// body. Invalid-and-unrepairable audio never reaches blob storage.
func validateUpload(enc recording.EncodedAudio) (recording.EncodedAudio, error) {
	if !strings.HasPrefix(enc.MIME, "audio/webm") {
		return enc, nil
	}
	return recording.ValidateAndRepair(enc)
}

// createSubmission handles POST /v1/submissions.
func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}

	sub, err := s.subs.CreateSubmission(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.toSubmissionResponse(r.Context(), sub, nil))
}

// getSubmission handles GET /v1/submissions/{id}.
func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sub, err := s.subs.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	slots, err := s.subs.ListSlots(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toSubmissionResponse(r.Context(), sub, slots))
}

// uploadSlot handles PUT /v1/submissions/{id}/slots/{slot}. The request body
// is the assembled recording; re-uploading the same slot replaces the previous
// reference in place.
func (s *Server) uploadSlot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slot := r.PathValue("slot")

	if _, err := s.subs.GetSubmission(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		badRequest(w, "read body: "+err.Error())
		return
	}
	if len(data) == 0 {
		badRequest(w, "empty recording")
		return
	}
	mime := r.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/webm"
	}

	enc, err := validateUpload(recording.EncodedAudio{Data: data, MIME: mime})
	if err != nil {
		writeError(w, err)
		return
	}
	owner := recording.OwnerKey(slot)

	start := time.Now()
	ref, err := s.uploads.Upload(r.Context(), enc, owner)
	if err != nil {
		s.metrics.RecordUpload(r.Context(), "failed")
		writeError(w, err)
		return
	}
	if err := s.uploads.Associate(r.Context(), id, owner, ref); err != nil {
		s.metrics.RecordUpload(r.Context(), "failed")
		writeError(w, err)
		return
	}
	s.metrics.UploadDuration.Record(r.Context(), time.Since(start).Seconds())
	s.metrics.RecordUpload(r.Context(), "uploaded")

	writeJSON(w, http.StatusOK, slotResponse{
		SlotKey:  slot,
		AudioRef: ref,
		AudioURL: s.audioURL(r.Context(), ref),
	})
}

// submitSubmission handles POST /v1/submissions/{id}/submit. It hands the
// submission to server-side grading; further status arrives via the feed.
func (s *Server) submitSubmission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.subs.GetSubmission(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	applied, err := s.subs.SetSubmissionStatus(r.Context(), id, store.StatusProcessing)
	if err != nil {
		writeError(w, err)
		return
	}
	if applied {
		s.metrics.RecordStatusChange(r.Context(), "submissions", string(store.StatusProcessing))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":      id,
		"status":  store.StatusProcessing,
		"applied": applied,
	})
}
