package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Tavasya/speakdrill/internal/script"
	"github.com/Tavasya/speakdrill/pkg/voicechan"
)

// voiceClientMessage is a text message from the browser into the
// conversation.
type voiceClientMessage struct {
	Text string `json:"text"`
}

// voiceEvent mirrors a [voicechan.Event] for the browser.
type voiceEvent struct {
	Type        string `json:"type"`
	Participant string `json:"participant,omitempty"`
	Joined      bool   `json:"joined,omitempty"`
	State       string `json:"state,omitempty"`
	Text        string `json:"text,omitempty"`
	Final       bool   `json:"final,omitempty"`
}

// voiceProgress reports script-following state after a final transcription
// fragment. Sent only when the client supplied a script.
type voiceProgress struct {
	Type      string `json:"type"`
	Matched   int    `json:"matched"`
	Total     int    `json:"total"`
	OffScript bool   `json:"off_script"`
	Done      bool   `json:"done"`
}

func toVoiceEvent(ev voicechan.Event) voiceEvent {
	return voiceEvent{
		Type:        string(ev.Type),
		Participant: ev.Participant,
		Joined:      ev.Joined,
		State:       ev.State,
		Text:        ev.Text,
		Final:       ev.Final,
	}
}

// practiceVoice handles GET /v1/practice/{id}/voice. It upgrades to a
// WebSocket and bridges the client to the real-time voice agent: client text
// messages flow into the conversation, agent events flow back out. When the
// client passes ?script=<text>, final transcription fragments are tracked
// against the script and progress events are interleaved with the agent
// events.
func (s *Server) practiceVoice(w http.ResponseWriter, r *http.Request) {
	if s.voiceDialer == nil || s.voiceAgentURL == "" {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "voice agent not configured"})
		return
	}

	sess, err := s.practices.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var tracker *script.Tracker
	if text := r.URL.Query().Get("script"); text != "" {
		tracker = script.New(text)
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("api: websocket accept", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server closing")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	agent, err := s.voiceDialer.Dial(ctx, s.voiceAgentURL)
	if err != nil {
		slog.Warn("api: dial voice agent", "session", sess.ID, "err", err)
		conn.Close(websocket.StatusInternalError, "voice agent unavailable")
		return
	}
	defer agent.Close()

	slog.Info("api: voice bridge open", "session", sess.ID)

	// Client to agent. Read errors (including disconnect) end the bridge.
	go func() {
		defer cancel()
		for {
			var msg voiceClientMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return
			}
			if msg.Text == "" {
				continue
			}
			if err := agent.SendMessage(ctx, msg.Text); err != nil {
				slog.Warn("api: send to voice agent", "session", sess.ID, "err", err)
				return
			}
		}
	}()

	// Agent to client.
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-agent.Events():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "agent closed")
				return
			}
			if err := wsjson.Write(ctx, conn, toVoiceEvent(ev)); err != nil {
				return
			}
			if tracker == nil || ev.Type != voicechan.EventTranscription || !ev.Final {
				continue
			}
			for _, word := range strings.Fields(ev.Text) {
				tracker.Advance(word)
			}
			matched, total := tracker.Progress()
			err := wsjson.Write(ctx, conn, voiceProgress{
				Type:      "progress",
				Matched:   matched,
				Total:     total,
				OffScript: tracker.OffScript(),
				Done:      tracker.Done(),
			})
			if err != nil {
				return
			}
		}
	}
}
