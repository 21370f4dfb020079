package render

import (
	"strings"
	"testing"
	"time"

	"github.com/taskmill/taskmill/internal/state"
)

func sampleSession() *state.Session {
	sess := state.Initial("abc123", "Launch a product landing page")
	done := state.NewTask("Write headline", "Draft the hero headline")
	done.Status = state.TaskCompleted
	done.Result = "Ship faster with Taskmill"
	failed := state.NewTask("Define colors", "Pick the palette")
	failed.Status = state.TaskFailed
	failed.Error = "execution failed: provider timeout"

	return state.Merge(sess, state.Delta{
		Phase: state.PhaseOf(state.PhaseCompleted),
		Tasks: []state.Task{done, failed},
		Messages: []state.Message{
			{Role: "assistant", Content: "I've broken down your goal into 2 tasks.", Timestamp: time.Now()},
			{Role: "user", Content: "looks good", Timestamp: time.Now()},
		},
		Traces: []state.TraceEntry{
			{Timestamp: time.Now(), Node: "plan_todos", Action: "planning_complete", Message: "Created 2 tasks"},
		},
	})
}

func TestTranscript(t *testing.T) {
	out := Transcript(sampleSession(), 80)

	for _, want := range []string{
		"Session abc123",
		"Launch a product landing page",
		"completed",
		"Write headline",
		"Define colors",
		"execution failed: provider timeout",
		"Created 2 tasks",
		"looks good",
		"1/2 completed",
		"1 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q", want)
		}
	}
}

func TestTranscriptEmptySession(t *testing.T) {
	out := Transcript(state.Initial("empty", "nothing yet"), 80)
	if !strings.Contains(out, "nothing yet") {
		t.Error("expected goal in empty transcript")
	}
	if strings.Contains(out, "Tasks\n") || strings.Contains(out, "Timeline") {
		t.Error("empty session must not render empty sections")
	}
}

func TestTranscriptWrapsLongMessages(t *testing.T) {
	sess := state.Merge(state.Initial("s", "goal"), state.Delta{
		Messages: []state.Message{
			{Role: "assistant", Content: strings.Repeat("word ", 60), Timestamp: time.Now()},
		},
	})
	out := Transcript(sess, 40)
	for _, line := range strings.Split(out, "\n") {
		if len(line) > 0 && !strings.Contains(line, "─") && len([]rune(line)) > 120 {
			t.Errorf("line not wrapped: %d chars", len(line))
		}
	}
}
