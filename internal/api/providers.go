package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// assessAudio handles POST /v1/assess?reference=<text>. The body is the
// recording to score against the reference text.
func (s *Server) assessAudio(w http.ResponseWriter, r *http.Request) {
	if s.assess == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "assessment provider not configured"})
		return
	}
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		badRequest(w, "reference query parameter is required")
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

	start := time.Now()
	result, err := s.assess.Assess(r.Context(), data, mime, reference)
	s.metrics.AssessDuration.Record(r.Context(), time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(r.Context(), "assess", "assess")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// synthesize handles POST /v1/synthesize. The response body is the rendered
// audio clip with its MIME type in Content-Type.
func (s *Server) synthesize(w http.ResponseWriter, r *http.Request) {
	if s.tts == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "synthesis provider not configured"})
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Text == "" {
		badRequest(w, "text is required")
		return
	}

	start := time.Now()
	clip, err := s.tts.Synthesize(r.Context(), req.Text)
	s.metrics.SynthesisDuration.Record(r.Context(), time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(r.Context(), "tts", "synthesize")
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", clip.MIME)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(clip.Audio); err != nil {
		return
	}
}

// transcribe handles POST /v1/transcribe. The body is the recording to
// transcribe.
func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	if s.stt == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "transcription provider not configured"})
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

	start := time.Now()
	transcript, err := s.stt.Transcribe(r.Context(), data, mime)
	s.metrics.TranscriptionDuration.Record(r.Context(), time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(r.Context(), "stt", "transcribe")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}
