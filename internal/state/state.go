// Package state defines the session aggregate and its merge semantics.
package state

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Phase represents the current stage of a session's control loop.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAnalyzing  Phase = "analyzing"
	PhasePlanning   Phase = "planning"
	PhaseExecuting  Phase = "executing"
	PhaseReflecting Phase = "reflecting"
	PhasePaused     Phase = "paused"
	PhaseCompleted  Phase = "completed"
	PhaseError      Phase = "error"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"

	// TaskNeedsFollowup is reserved for human-loop branching. The current
	// control loop never produces it.
	TaskNeedsFollowup TaskStatus = "needs_followup"
)

// NoTask is the current-task pointer value when no task is selected.
const NoTask = -1

// Task is one unit of planned work within a session.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a pending task with a fresh short id.
func NewTask(title, description string) Task {
	return Task{
		ID:          strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Title:       title,
		Description: description,
		Status:      TaskPending,
	}
}

// Terminal reports whether the task has reached a final status.
func (t Task) Terminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// TraceEntry is an append-only audit record of one action taken by one phase.
type TraceEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Node      string         `json:"node"`
	Action    string         `json:"action"`
	TaskID    string         `json:"task_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// Message is one entry in the session's conversation log.
type Message struct {
	Role      string    `json:"role"` // system, user, assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UserMessage creates a conversation entry from the human operator.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content, Timestamp: time.Now().UTC()}
}

// Session is the root aggregate for one end-to-end execution of a goal.
// It is mutated only through Merge; persisted snapshots are always whole.
type Session struct {
	ID          string       `json:"id"`
	Goal        string       `json:"goal"`
	Phase       Phase        `json:"phase"`
	Tasks       []Task       `json:"tasks"`
	CurrentTask int          `json:"current_task"`
	Messages    []Message    `json:"messages"`
	Traces      []TraceEntry `json:"traces"`
	Paused      bool         `json:"paused"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Initial creates a fresh session for a goal.
func Initial(sessionID, goal string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          sessionID,
		Goal:        goal,
		Phase:       PhaseIdle,
		Tasks:       []Task{},
		CurrentTask: NoTask,
		Messages:    []Message{},
		Traces:      []TraceEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TaskByID returns the task with the given id, if present.
func (s *Session) TaskByID(id string) (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// FirstPending returns the index of the first pending task in list order,
// or NoTask if none remains.
func (s *Session) FirstPending() int {
	for i, t := range s.Tasks {
		if t.Status == TaskPending {
			return i
		}
	}
	return NoTask
}

// HasPending reports whether any task is still pending.
func (s *Session) HasPending() bool {
	return s.FirstPending() != NoTask
}

// Counts returns the number of completed and failed tasks.
func (s *Session) Counts() (completed, failed int) {
	for _, t := range s.Tasks {
		switch t.Status {
		case TaskCompleted:
			completed++
		case TaskFailed:
			failed++
		}
	}
	return completed, failed
}
