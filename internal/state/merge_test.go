package state

import (
	"reflect"
	"testing"
	"time"
)

func TestInitial(t *testing.T) {
	s := Initial("sess-1", "ship the landing page")

	if s.ID != "sess-1" {
		t.Errorf("expected id sess-1, got %s", s.ID)
	}
	if s.Goal != "ship the landing page" {
		t.Errorf("unexpected goal: %s", s.Goal)
	}
	if s.Phase != PhaseIdle {
		t.Errorf("expected idle phase, got %s", s.Phase)
	}
	if len(s.Tasks) != 0 || len(s.Traces) != 0 || len(s.Messages) != 0 {
		t.Error("initial session should have empty lists")
	}
	if s.CurrentTask != NoTask {
		t.Errorf("expected no current task, got %d", s.CurrentTask)
	}
	if s.Paused {
		t.Error("initial session should not be paused")
	}
	if s.Error != "" {
		t.Errorf("initial session should have no error, got %q", s.Error)
	}
}

func TestMerge_TaskReplaceByID(t *testing.T) {
	a := NewTask("write headline", "draft the hero headline")
	b := NewTask("pick colors", "choose a palette")
	c := NewTask("write copy", "body text")
	s := Merge(Initial("s", "goal"), Delta{Tasks: []Task{a, b, c}})

	updated := b
	updated.Status = TaskCompleted
	updated.Result = "#1a1a2e and #e94560"

	merged := Merge(s, Delta{Tasks: []Task{updated}})

	if len(merged.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(merged.Tasks))
	}
	if merged.Tasks[1].Status != TaskCompleted {
		t.Errorf("expected task b replaced, got status %s", merged.Tasks[1].Status)
	}
	if merged.Tasks[1].ID != b.ID {
		t.Error("replacement must keep list position")
	}
	if !reflect.DeepEqual(merged.Tasks[0], a) || !reflect.DeepEqual(merged.Tasks[2], c) {
		t.Error("tasks absent from the delta must be retained unchanged")
	}
	// Source session untouched.
	if s.Tasks[1].Status != TaskPending {
		t.Error("merge must not mutate its input")
	}
}

func TestMerge_TaskAppendNewID(t *testing.T) {
	a := NewTask("first", "")
	s := Merge(Initial("s", "goal"), Delta{Tasks: []Task{a}})

	b := NewTask("second", "")
	merged := Merge(s, Delta{Tasks: []Task{b}})

	if len(merged.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(merged.Tasks))
	}
	if merged.Tasks[0].ID != a.ID || merged.Tasks[1].ID != b.ID {
		t.Error("new ids must strictly append after existing tasks")
	}
}

func TestMerge_LogsAppendOnly(t *testing.T) {
	s := Initial("s", "goal")
	now := time.Now().UTC()

	first := TraceEntry{Timestamp: now, Node: "analyze_goal", Action: "analyzing", Message: "one"}
	second := TraceEntry{Timestamp: now, Node: "plan_todos", Action: "planning_started", Message: "two"}

	s = Merge(s, Delta{
		Traces:   []TraceEntry{first},
		Messages: []Message{{Role: "assistant", Content: "hello", Timestamp: now}},
	})
	s = Merge(s, Delta{
		Traces:   []TraceEntry{second},
		Messages: []Message{{Role: "user", Content: "go on", Timestamp: now}},
	})

	if len(s.Traces) != 2 || len(s.Messages) != 2 {
		t.Fatalf("expected 2 traces and 2 messages, got %d/%d", len(s.Traces), len(s.Messages))
	}
	if s.Traces[0].Message != "one" || s.Traces[1].Message != "two" {
		t.Error("existing trace prefix must not be reordered")
	}
	if s.Messages[0].Role != "assistant" || s.Messages[1].Role != "user" {
		t.Error("existing message prefix must not be reordered")
	}

	// An empty delta never shrinks the logs.
	s = Merge(s, Delta{})
	if len(s.Traces) != 2 || len(s.Messages) != 2 {
		t.Error("empty delta must leave logs untouched")
	}
}

func TestMerge_ScalarsLastWriteWins(t *testing.T) {
	s := Initial("s", "goal")

	s = Merge(s, Delta{
		Phase:       PhaseOf(PhaseExecuting),
		CurrentTask: IntOf(2),
		Paused:      BoolOf(true),
		Error:       StringOf("boom"),
	})

	if s.Phase != PhaseExecuting || s.CurrentTask != 2 || !s.Paused || s.Error != "boom" {
		t.Errorf("scalar overwrite failed: %+v", s)
	}

	// Absent fields leave prior values untouched.
	s = Merge(s, Delta{Phase: PhaseOf(PhaseReflecting)})
	if s.CurrentTask != 2 || !s.Paused || s.Error != "boom" {
		t.Error("fields absent from a delta must keep their prior values")
	}
	if s.Phase != PhaseReflecting {
		t.Errorf("expected reflecting, got %s", s.Phase)
	}
}

func TestNewTask(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		task := NewTask("t", "d")
		if len(task.ID) != 8 {
			t.Fatalf("expected 8-char task id, got %q", task.ID)
		}
		if seen[task.ID] {
			t.Fatalf("duplicate task id %s", task.ID)
		}
		seen[task.ID] = true
		if task.Status != TaskPending {
			t.Fatalf("new task must start pending, got %s", task.Status)
		}
	}
}

func TestFirstPendingAndCounts(t *testing.T) {
	a := NewTask("a", "")
	b := NewTask("b", "")
	c := NewTask("c", "")
	a.Status = TaskCompleted
	b.Status = TaskFailed

	s := Merge(Initial("s", "goal"), Delta{Tasks: []Task{a, b, c}})

	if got := s.FirstPending(); got != 2 {
		t.Errorf("expected first pending at index 2, got %d", got)
	}
	completed, failed := s.Counts()
	if completed != 1 || failed != 1 {
		t.Errorf("expected counts 1/1, got %d/%d", completed, failed)
	}

	c.Status = TaskCompleted
	s = Merge(s, Delta{Tasks: []Task{c}})
	if s.HasPending() {
		t.Error("no task should remain pending")
	}
	if got := s.FirstPending(); got != NoTask {
		t.Errorf("expected NoTask, got %d", got)
	}
}
