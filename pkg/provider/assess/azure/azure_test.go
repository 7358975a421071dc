package azure

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tavasya/speakdrill/pkg/provider/assess"
)

const successBody = `{
	"RecognitionStatus": "Success",
	"NBest": [{
		"PronScore": 82.5,
		"Words": [
			{"Word": "the", "AccuracyScore": 95.0, "ErrorType": "None"},
			{"Word": "weather", "AccuracyScore": 55.0, "ErrorType": "Mispronunciation"},
			{"Word": "today", "AccuracyScore": 88.0, "ErrorType": "None"}
		]
	}]
}`

func TestAssess(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Pronunciation-Assessment")
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(successBody))
	}))
	defer srv.Close()

	p, err := New("eastus", "key-1", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Assess(context.Background(), []byte("audio"), "audio/webm", "the weather today")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if res.OverallScore != 82.5 {
		t.Fatalf("overall score = %v", res.OverallScore)
	}
	if len(res.Words) != 3 {
		t.Fatalf("word count = %d", len(res.Words))
	}
	if res.Words[0].ErrorType != "" || res.Words[1].ErrorType != "Mispronunciation" {
		t.Fatalf("error types = %+v", res.Words)
	}
	if len(res.WeakWords) != 1 || res.WeakWords[0] != "weather" {
		t.Fatalf("weak words = %v", res.WeakWords)
	}

	raw, err := base64.StdEncoding.DecodeString(gotHeader)
	if err != nil {
		t.Fatalf("assessment header is not base64: %v", err)
	}
	var cfg map[string]string
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("assessment header is not JSON: %v", err)
	}
	if cfg["ReferenceText"] != "the weather today" {
		t.Fatalf("reference text = %q", cfg["ReferenceText"])
	}
}

func TestAssess_HTTPErrorWrapsAssessmentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := New("eastus", "key-1", WithEndpoint(srv.URL))
	_, err := p.Assess(context.Background(), []byte("audio"), "audio/webm", "text")
	if !errors.Is(err, assess.ErrAssessment) {
		t.Fatalf("Assess = %v, want ErrAssessment", err)
	}
}

func TestAssess_RecognitionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"RecognitionStatus": "InitialSilenceTimeout", "NBest": []}`))
	}))
	defer srv.Close()

	p, _ := New("eastus", "key-1", WithEndpoint(srv.URL))
	_, err := p.Assess(context.Background(), []byte("audio"), "audio/webm", "text")
	if !errors.Is(err, assess.ErrAssessment) {
		t.Fatalf("Assess = %v, want ErrAssessment", err)
	}
}

func TestAssess_EmptyAudio(t *testing.T) {
	p, _ := New("eastus", "key-1")
	_, err := p.Assess(context.Background(), nil, "audio/webm", "text")
	if !errors.Is(err, assess.ErrAssessment) {
		t.Fatalf("Assess = %v, want ErrAssessment", err)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New("eastus", ""); err == nil {
		t.Fatal("New should reject an empty key")
	}
}
