package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Tavasya/speakdrill/pkg/voicechan"
	vcmock "github.com/Tavasya/speakdrill/pkg/voicechan/mock"
)

func dialVoice(t *testing.T, ts *testServer, id, query string) (*websocket.Conn, context.Context) {
	t.Helper()

	httpSrv := httptest.NewServer(ts.mux)
	t.Cleanup(httpSrv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") +
		"/v1/practice/" + id + "/voice" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	return conn, ctx
}

func TestPracticeVoice_BridgesEventsAndMessages(t *testing.T) {
	ts := newTestServer(t)
	agent := vcmock.New()
	ts.srv.voiceDialer = vcmock.Dialer{Ch: agent}
	ts.srv.voiceAgentURL = "ws://agent.local/voice"

	created := decode[practiceResponse](t, ts.do(t, "POST", "/v1/practice",
		"application/json", []byte(`{"user_id":"user-1","mode":"sentence"}`)))

	conn, ctx := dialVoice(t, ts, created.ID, "")

	// Agent events reach the client.
	agent.Emit(voicechan.Event{Type: voicechan.EventParticipant, Participant: "coach", Joined: true})

	var ev voiceEvent
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != string(voicechan.EventParticipant) || ev.Participant != "coach" || !ev.Joined {
		t.Errorf("event = %+v, want coach join", ev)
	}

	// Client text reaches the agent.
	if err := wsjson.Write(ctx, conn, voiceClientMessage{Text: "hello"}); err != nil {
		t.Fatalf("write message: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if sent := agent.Sent(); len(sent) == 1 && sent[0] == "hello" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("agent never received message, sent = %v", agent.Sent())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPracticeVoice_ScriptProgress(t *testing.T) {
	ts := newTestServer(t)
	agent := vcmock.New()
	ts.srv.voiceDialer = vcmock.Dialer{Ch: agent}
	ts.srv.voiceAgentURL = "ws://agent.local/voice"

	created := decode[practiceResponse](t, ts.do(t, "POST", "/v1/practice",
		"application/json", []byte(`{"user_id":"user-1","mode":"full_transcript"}`)))

	conn, ctx := dialVoice(t, ts, created.ID, "?script=the+quick+brown+fox")

	// Interim fragments pass through without progress.
	agent.Emit(voicechan.Event{Type: voicechan.EventTranscription, Text: "the qui", Final: false})
	var interim voiceEvent
	if err := wsjson.Read(ctx, conn, &interim); err != nil {
		t.Fatalf("read interim: %v", err)
	}

	// A final fragment advances the tracker and appends a progress event.
	agent.Emit(voicechan.Event{Type: voicechan.EventTranscription, Text: "the quick", Final: true})
	var final voiceEvent
	if err := wsjson.Read(ctx, conn, &final); err != nil {
		t.Fatalf("read final: %v", err)
	}
	var progress voiceProgress
	if err := wsjson.Read(ctx, conn, &progress); err != nil {
		t.Fatalf("read progress: %v", err)
	}
	if progress.Type != "progress" {
		t.Errorf("progress type = %q", progress.Type)
	}
	if progress.Matched != 2 || progress.Total != 4 {
		t.Errorf("progress = %d/%d, want 2/4", progress.Matched, progress.Total)
	}
	if progress.Done || progress.OffScript {
		t.Errorf("progress done=%v off_script=%v, want false/false", progress.Done, progress.OffScript)
	}
}

func TestPracticeVoice_NotConfigured(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/v1/practice/whatever/voice", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestPracticeVoice_UnknownSession(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.voiceDialer = vcmock.Dialer{Ch: vcmock.New()}
	ts.srv.voiceAgentURL = "ws://agent.local/voice"

	rec := ts.do(t, "GET", "/v1/practice/nope/voice", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
