package fsm

import "testing"

func TestTransition_HappyPath(t *testing.T) {
	steps := []struct {
		event Event
		want  State
	}{
		{EventStart, StateRecording},
		{EventStop, StateRecorded},
		{EventUploadBegin, StateUploading},
		{EventUploadOK, StateUploaded},
	}

	s := StateIdle
	for _, step := range steps {
		next, err := Transition(s, step.event)
		if err != nil {
			t.Fatalf("Transition(%q, %q): %v", s, step.event, err)
		}
		if next != step.want {
			t.Fatalf("Transition(%q, %q) = %q, want %q", s, step.event, next, step.want)
		}
		s = next
	}
}

func TestTransition_TimeUpActsLikeStop(t *testing.T) {
	next, err := Transition(StateRecording, EventTimeUp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != StateRecorded {
		t.Fatalf("time_up from recording = %q, want recorded", next)
	}
}

func TestTransition_UploadFailureBackEdges(t *testing.T) {
	next, err := Transition(StateUploading, EventUploadErr)
	if err != nil || next != StateUploadFailed {
		t.Fatalf("upload_err = (%q, %v), want upload_failed", next, err)
	}

	retry, err := Transition(StateUploadFailed, EventRetry)
	if err != nil || retry != StateUploading {
		t.Fatalf("retry = (%q, %v), want uploading", retry, err)
	}

	redo, err := Transition(StateUploadFailed, EventRedo)
	if err != nil || redo != StateIdle {
		t.Fatalf("redo = (%q, %v), want idle", redo, err)
	}
}

func TestTransition_NoDiscardMidUpload(t *testing.T) {
	if _, err := Transition(StateUploading, EventRedo); err == nil {
		t.Fatal("redo while uploading must be rejected")
	}
}

func TestTransition_InvalidIsTerminalUntilRedo(t *testing.T) {
	failed, err := Transition(StateRecorded, EventInvalid)
	if err != nil || failed != StateFailed {
		t.Fatalf("invalid from recorded = (%q, %v), want failed", failed, err)
	}

	for _, ev := range []Event{EventStart, EventStop, EventUploadBegin, EventRetry} {
		if _, err := Transition(StateFailed, ev); err == nil {
			t.Errorf("event %q must not be legal in failed", ev)
		}
	}

	idle, err := Transition(StateFailed, EventRedo)
	if err != nil || idle != StateIdle {
		t.Fatalf("redo from failed = (%q, %v), want idle", idle, err)
	}
}

// TestTransition_Monotonicity walks every legal event sequence of bounded
// length and asserts observed states are always a subsequence of the forward
// order idle, recording, recorded, uploading, (uploaded | upload_failed),
// with retry and redo as the only back-edges.
func TestTransition_Monotonicity(t *testing.T) {
	order := map[State]int{
		StateIdle:         0,
		StateRecording:    1,
		StateRecorded:     2,
		StateUploading:    3,
		StateUploaded:     4,
		StateUploadFailed: 4,
		StateFailed:       4,
	}
	events := []Event{
		EventStart, EventStop, EventTimeUp, EventInvalid,
		EventUploadBegin, EventUploadOK, EventUploadErr, EventRetry, EventRedo,
	}

	type node struct {
		state State
		depth int
	}
	queue := []node{{StateIdle, 0}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.depth >= 8 {
			continue
		}
		for _, ev := range events {
			next, err := Transition(n.state, ev)
			if err != nil {
				continue
			}
			forward := order[next] >= order[n.state]
			backEdge := ev == EventRetry || ev == EventRedo
			if !forward && !backEdge {
				t.Fatalf("illegal backward move %q --%q--> %q", n.state, ev, next)
			}
			queue = append(queue, node{next, n.depth + 1})
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for s, want := range map[State]bool{
		StateIdle:         false,
		StateRecording:    false,
		StateRecorded:     false,
		StateUploading:    false,
		StateUploaded:     true,
		StateUploadFailed: false,
		StateFailed:       true,
	} {
		if got := IsTerminal(s); got != want {
			t.Errorf("IsTerminal(%q) = %v, want %v", s, got, want)
		}
	}
}
