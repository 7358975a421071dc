package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tavasya/speakdrill/pkg/provider/tts"
)

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v1/text-to-speech/voice-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["text"] != "weather" {
			t.Errorf("text = %v", req["text"])
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xFF, 0xFB, 0x90})
	}))
	defer srv.Close()

	p, err := New("key-1", "voice-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clip, err := p.Synthesize(context.Background(), "weather")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.MIME != "audio/mpeg" {
		t.Fatalf("mime = %q", clip.MIME)
	}
	if len(clip.Audio) != 3 {
		t.Fatalf("audio length = %d", len(clip.Audio))
	}
}

func TestSynthesize_HTTPErrorWrapsSynthesisError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "voice not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p, _ := New("key-1", "voice-1", WithBaseURL(srv.URL))
	_, err := p.Synthesize(context.Background(), "weather")
	if !errors.Is(err, tts.ErrSynthesis) {
		t.Fatalf("Synthesize = %v, want ErrSynthesis", err)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p, _ := New("key-1", "voice-1")
	_, err := p.Synthesize(context.Background(), "")
	if !errors.Is(err, tts.ErrSynthesis) {
		t.Fatalf("Synthesize = %v, want ErrSynthesis", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "voice-1"); err == nil {
		t.Fatal("New should reject an empty api key")
	}
	if _, err := New("key-1", ""); err == nil {
		t.Fatal("New should reject an empty voice id")
	}
}
