package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Tavasya/speakdrill/internal/recording"
	"github.com/Tavasya/speakdrill/pkg/store"
)

// practiceResponse is the JSON shape of a practice session.
type practiceResponse struct {
	ID                 string                 `json:"id"`
	UserID             string                 `json:"user_id"`
	Mode               string                 `json:"mode"`
	Status             store.Status           `json:"status"`
	Transcript         string                 `json:"transcript,omitempty"`
	ImprovedTranscript string                 `json:"improved_transcript,omitempty"`
	Edits              []store.TranscriptEdit `json:"edits,omitempty"`
	AudioRef           string                 `json:"audio_ref,omitempty"`
	AudioURL           string                 `json:"audio_url,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

func (s *Server) toPracticeResponse(ctx context.Context, sess store.PracticeSession) practiceResponse {
	return practiceResponse{
		ID:                 sess.ID,
		UserID:             sess.UserID,
		Mode:               sess.Mode,
		Status:             sess.Status,
		Transcript:         sess.Transcript,
		ImprovedTranscript: sess.ImprovedTranscript,
		Edits:              sess.Edits,
		AudioRef:           sess.AudioRef,
		AudioURL:           s.audioURL(ctx, sess.AudioRef),
		CreatedAt:          sess.CreatedAt,
		UpdatedAt:          sess.UpdatedAt,
	}
}

// createPractice handles POST /v1/practice.
func (s *Server) createPractice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Mode   string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}
	if !recording.PracticeMode(req.Mode).IsValid() {
		badRequest(w, "unknown practice mode "+req.Mode)
		return
	}

	sess, err := s.practices.CreateSession(r.Context(), store.PracticeSession{
		UserID: req.UserID,
		Mode:   req.Mode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ActiveSessions.Add(r.Context(), 1)
	writeJSON(w, http.StatusCreated, s.toPracticeResponse(r.Context(), sess))
}

// getPractice handles GET /v1/practice/{id}.
func (s *Server) getPractice(w http.ResponseWriter, r *http.Request) {
	sess, err := s.practices.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toPracticeResponse(r.Context(), sess))
}

// uploadPracticeAudio handles PUT /v1/practice/{id}/audio. The body is the
// full drill recording.
func (s *Server) uploadPracticeAudio(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess, err := s.practices.GetSession(r.Context(), id)
	if err != nil {
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
	owner := recording.OwnerKey(sess.UserID)

	start := time.Now()
	ref, err := s.practiceUploads.Upload(r.Context(), enc, owner)
	if err != nil {
		s.metrics.RecordUpload(r.Context(), "failed")
		writeError(w, err)
		return
	}
	if err := s.practiceUploads.Associate(r.Context(), id, owner, ref); err != nil {
		s.metrics.RecordUpload(r.Context(), "failed")
		writeError(w, err)
		return
	}
	s.metrics.UploadDuration.Record(r.Context(), time.Since(start).Seconds())
	s.metrics.RecordUpload(r.Context(), "uploaded")

	writeJSON(w, http.StatusOK, map[string]string{
		"id":        id,
		"audio_ref": ref,
		"audio_url": s.audioURL(r.Context(), ref),
	})
}

// improvePractice handles POST /v1/practice/{id}/improve. The optional body
// sets the raw transcript before the background improvement run starts; the
// finished result arrives via the status feed.
func (s *Server) improvePractice(w http.ResponseWriter, r *http.Request) {
	if s.improver == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "improvement provider not configured"})
		return
	}
	id := r.PathValue("id")

	var req struct {
		Transcript string `json:"transcript"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
	}

	if req.Transcript != "" {
		if err := s.practices.SetTranscripts(r.Context(), id, req.Transcript, "", nil); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := s.improver.Request(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":     id,
		"status": store.StatusProcessing,
	})
}
