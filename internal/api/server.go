// Package api exposes the speakdrill practice gateway over HTTP.
//
// The surface covers the full drill workflow: creating submissions and
// practice sessions, uploading recorded audio into slots, triggering the
// transcript-improvement pipeline, direct provider calls (assessment,
// synthesis, transcription), and a WebSocket feed that pushes remote status
// transitions to clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tavasya/speakdrill/internal/improve"
	"github.com/Tavasya/speakdrill/internal/observe"
	"github.com/Tavasya/speakdrill/internal/recording"
	"github.com/Tavasya/speakdrill/internal/statusfeed"
	"github.com/Tavasya/speakdrill/internal/uploader"
	"github.com/Tavasya/speakdrill/pkg/blob"
	"github.com/Tavasya/speakdrill/pkg/provider/assess"
	"github.com/Tavasya/speakdrill/pkg/provider/stt"
	"github.com/Tavasya/speakdrill/pkg/provider/tts"
	"github.com/Tavasya/speakdrill/pkg/store"
	"github.com/Tavasya/speakdrill/pkg/voicechan"
)

// maxUploadBytes caps the request body size for audio uploads. Five-minute
// Opus-in-WebM recordings stay well under this.
const maxUploadBytes = 32 << 20

// audioURLTTL is how long playback links handed out on responses stay valid.
const audioURLTTL = 15 * time.Minute

// Server holds the handler dependencies. Nil provider fields disable the
// corresponding endpoints with 503 responses.
type Server struct {
	subs      store.SubmissionStore
	practices store.PracticeStore

	uploads         recording.Uploader
	practiceUploads recording.Uploader

	feed     *statusfeed.Feed
	improver *improve.Service
	blobs    blob.Store

	assess assess.Provider
	tts    tts.Provider
	stt    stt.Provider

	voiceDialer   voicechan.Dialer
	voiceAgentURL string

	metrics *observe.Metrics
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithAssess enables the pronunciation assessment endpoint.
func WithAssess(p assess.Provider) Option {
	return func(s *Server) { s.assess = p }
}

// WithTTS enables the synthesis endpoint.
func WithTTS(p tts.Provider) Option {
	return func(s *Server) { s.tts = p }
}

// WithSTT enables the transcription endpoint.
func WithSTT(p stt.Provider) Option {
	return func(s *Server) { s.stt = p }
}

// WithImprover enables the transcript-improvement trigger endpoint.
func WithImprover(svc *improve.Service) Option {
	return func(s *Server) { s.improver = svc }
}

// WithBlobStore enables playback URLs on responses that carry audio
// references.
func WithBlobStore(b blob.Store) Option {
	return func(s *Server) { s.blobs = b }
}

// WithVoiceAgent enables the conversational-practice voice bridge. d dials
// the agent service at url for every bridged client.
func WithVoiceAgent(d voicechan.Dialer, url string) Option {
	return func(s *Server) {
		s.voiceDialer = d
		s.voiceAgentURL = url
	}
}

// WithMetrics overrides the metrics instance (defaults to
// [observe.DefaultMetrics]).
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server. The uploaders bind uploaded audio to submissions and
// practice sessions respectively; feed drives the WebSocket status endpoint.
func New(
	subs store.SubmissionStore,
	practices store.PracticeStore,
	uploads, practiceUploads recording.Uploader,
	feed *statusfeed.Feed,
	opts ...Option,
) *Server {
	s := &Server{
		subs:            subs,
		practices:       practices,
		uploads:         uploads,
		practiceUploads: practiceUploads,
		feed:            feed,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds all gateway routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/submissions", s.createSubmission)
	mux.HandleFunc("GET /v1/submissions/{id}", s.getSubmission)
	mux.HandleFunc("PUT /v1/submissions/{id}/slots/{slot}", s.uploadSlot)
	mux.HandleFunc("POST /v1/submissions/{id}/submit", s.submitSubmission)

	mux.HandleFunc("POST /v1/practice", s.createPractice)
	mux.HandleFunc("GET /v1/practice/{id}", s.getPractice)
	mux.HandleFunc("PUT /v1/practice/{id}/audio", s.uploadPracticeAudio)
	mux.HandleFunc("POST /v1/practice/{id}/improve", s.improvePractice)
	mux.HandleFunc("GET /v1/practice/{id}/voice", s.practiceVoice)

	mux.HandleFunc("POST /v1/assess", s.assessAudio)
	mux.HandleFunc("POST /v1/synthesize", s.synthesize)
	mux.HandleFunc("POST /v1/transcribe", s.transcribe)

	mux.HandleFunc("GET /v1/status", s.statusSocket)
}

// errorBody is the JSON error response envelope.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "err", err)
	}
}

// writeError maps err to an HTTP status and writes a JSON error body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, recording.ErrInvalidRecording):
		status = http.StatusBadRequest
	case errors.Is(err, uploader.ErrStorage),
		errors.Is(err, uploader.ErrAuth),
		errors.Is(err, assess.ErrAssessment),
		errors.Is(err, tts.ErrSynthesis),
		errors.Is(err, stt.ErrTranscription):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// badRequest writes a 400 with msg.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// readBody reads a size-capped request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
}

// audioURL resolves a stored audio reference to a time-limited playback URL.
// Returns "" when no blob store is configured or the ref cannot be resolved;
// the reference itself is still on the response.
func (s *Server) audioURL(ctx context.Context, ref string) string {
	if s.blobs == nil || ref == "" {
		return ""
	}
	url, err := s.blobs.SignedURL(ctx, ref, audioURLTTL)
	if err != nil {
		slog.Warn("api: sign playback url", "ref", ref, "err", err)
		return ""
	}
	return url
}
