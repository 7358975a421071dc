package api

import (
	"net/http"
	"testing"

	"github.com/Tavasya/speakdrill/pkg/provider/assess"
	assessmock "github.com/Tavasya/speakdrill/pkg/provider/assess/mock"
	"github.com/Tavasya/speakdrill/pkg/provider/stt"
	sttmock "github.com/Tavasya/speakdrill/pkg/provider/stt/mock"
	"github.com/Tavasya/speakdrill/pkg/provider/tts"
	ttsmock "github.com/Tavasya/speakdrill/pkg/provider/tts/mock"
)

func TestAssessEndpoint(t *testing.T) {
	provider := &assessmock.Provider{Result: assess.Result{
		OverallScore: 88,
		WeakWords:    []string{"weather"},
	}}
	ts := newTestServer(t, WithAssess(provider))

	rec := ts.do(t, "POST", "/v1/assess?reference=the+weather+today", "audio/webm", []byte("webm"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	result := decode[assess.Result](t, rec)
	if result.OverallScore != 88 {
		t.Errorf("overall score = %v, want 88", result.OverallScore)
	}
	if provider.LastReference() != "the weather today" {
		t.Errorf("reference = %q, want %q", provider.LastReference(), "the weather today")
	}
}

func TestAssessEndpoint_MissingReference(t *testing.T) {
	ts := newTestServer(t, WithAssess(&assessmock.Provider{}))
	rec := ts.do(t, "POST", "/v1/assess", "audio/webm", []byte("webm"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAssessEndpoint_ProviderFailure(t *testing.T) {
	provider := &assessmock.Provider{Err: assess.ErrAssessment}
	ts := newTestServer(t, WithAssess(provider))

	rec := ts.do(t, "POST", "/v1/assess?reference=hello", "audio/webm", []byte("webm"))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestSynthesizeEndpoint(t *testing.T) {
	provider := &ttsmock.Provider{Clip: tts.Clip{Audio: []byte("mp3"), MIME: "audio/mpeg"}}
	ts := newTestServer(t, WithTTS(provider))

	rec := ts.do(t, "POST", "/v1/synthesize", "application/json", []byte(`{"text":"weather"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", got)
	}
	if rec.Body.String() != "mp3" {
		t.Errorf("body = %q, want raw clip bytes", rec.Body.String())
	}
}

func TestTranscribeEndpoint(t *testing.T) {
	provider := &sttmock.Provider{Transcript: stt.Transcript{Text: "hello world"}}
	ts := newTestServer(t, WithSTT(provider))

	rec := ts.do(t, "POST", "/v1/transcribe", "audio/webm", []byte("webm"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	transcript := decode[stt.Transcript](t, rec)
	if transcript.Text != "hello world" {
		t.Errorf("text = %q, want %q", transcript.Text, "hello world")
	}
}
