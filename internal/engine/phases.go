package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/taskmill/taskmill/internal/state"
)

// analyzeGoal acknowledges the goal and opens the conversation. Any
// generation failure here is session-fatal and surfaces as a run error.
func (e *Engine) analyzeGoal(ctx context.Context, sess *state.Session) (state.Delta, error) {
	resp, err := e.gen.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: analyzeSystemPrompt},
			{Role: "user", Content: "Goal: " + sess.Goal},
		},
	})
	if err != nil {
		return state.Delta{}, fmt.Errorf("goal analysis failed: %w", err)
	}

	return state.Delta{
		Phase:    state.PhaseOf(state.PhaseAnalyzing),
		Messages: []state.Message{assistantMessage(resp.Content)},
		Traces: []state.TraceEntry{
			newTrace(NodeAnalyzeGoal, "analyzing",
				"Analyzing goal: "+truncate(sess.Goal, 100), "", nil),
		},
	}, nil
}

// plannedTask is the structured shape requested from the planner.
type plannedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type planResponse struct {
	Tasks     []plannedTask `json:"tasks"`
	Reasoning string        `json:"reasoning"`
}

// planTodos asks the generator for an ordered task breakdown and parses it.
// A generation failure is session-fatal (returned as an error); a parse
// failure is reported through the delta as an error phase, leaving the
// session non-progressable with an empty task list.
func (e *Engine) planTodos(ctx context.Context, sess *state.Session) (state.Delta, error) {
	start := newTrace(NodePlanTodos, "planning_started", "Generating task breakdown...", "", nil)

	resp, err := e.gen.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: planSystemPrompt},
			{Role: "user", Content: "Break down this goal into tasks:\n\n" + sess.Goal},
		},
	})
	if err != nil {
		return state.Delta{}, fmt.Errorf("task planning failed: %w", err)
	}

	plan, err := parsePlan(resp.Content)
	if err != nil {
		reason := fmt.Sprintf("failed to parse task list: %v", err)
		e.logger.Warn("planner output rejected", map[string]interface{}{
			"session": sess.ID,
			"error":   err.Error(),
		})
		return state.Delta{
			Phase: state.PhaseOf(state.PhaseError),
			Error: state.StringOf(reason),
			Traces: []state.TraceEntry{
				start,
				newTrace(NodePlanTodos, "planning_error", reason, "", nil),
			},
		}, nil
	}

	tasks := make([]state.Task, len(plan.Tasks))
	var summary strings.Builder
	fmt.Fprintf(&summary, "I've broken down your goal into %d tasks:\n\n", len(plan.Tasks))
	for i, p := range plan.Tasks {
		tasks[i] = state.NewTask(p.Title, p.Description)
		fmt.Fprintf(&summary, "  %d. **%s** - %s\n", i+1, p.Title, p.Description)
	}
	summary.WriteString("\nStarting execution...")

	complete := newTrace(NodePlanTodos, "planning_complete",
		fmt.Sprintf("Created %d tasks. %s", len(tasks), plan.Reasoning), "",
		map[string]any{"task_count": len(tasks)})

	return state.Delta{
		Phase:    state.PhaseOf(state.PhasePlanning),
		Tasks:    tasks,
		Messages: []state.Message{assistantMessage(summary.String())},
		Traces:   []state.TraceEntry{start, complete},
	}, nil
}

// parsePlan decodes the planner's structured output. Markdown code fences
// around the JSON are tolerated; missing titles or an empty list are not.
func parsePlan(content string) (*planResponse, error) {
	raw := stripCodeFence(content)
	if extracted := extractJSON(raw); extracted != "" {
		raw = extracted
	}

	var plan planResponse
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, err
	}
	if len(plan.Tasks) == 0 {
		return nil, fmt.Errorf("planner returned no tasks")
	}
	for i, t := range plan.Tasks {
		if t.Title == "" {
			return nil, fmt.Errorf("task %d is missing a title", i+1)
		}
	}
	return &plan, nil
}

// selectTask picks the first pending task in list order. With nothing left
// to do it marks the session completed.
func (e *Engine) selectTask(sess *state.Session) state.Delta {
	if i := sess.FirstPending(); i != state.NoTask {
		task := sess.Tasks[i]
		return state.Delta{
			CurrentTask: state.IntOf(i),
			Phase:       state.PhaseOf(state.PhaseExecuting),
			Traces: []state.TraceEntry{
				newTrace(NodeSelectTask, "task_selected", "Selected task: "+task.Title, task.ID, nil),
			},
		}
	}

	return state.Delta{
		CurrentTask: state.IntOf(state.NoTask),
		Phase:       state.PhaseOf(state.PhaseCompleted),
		Traces: []state.TraceEntry{
			newTrace(NodeSelectTask, "all_tasks_complete", "All tasks have been processed", "", nil),
		},
	}
}

// executeTask generates the deliverable for the current task. Generation
// failure is task-local: the task is marked failed and the run continues.
// An out-of-range task pointer is an invocation error and aborts the run.
func (e *Engine) executeTask(ctx context.Context, sess *state.Session) (state.Delta, error) {
	if sess.CurrentTask < 0 || sess.CurrentTask >= len(sess.Tasks) {
		return state.Delta{}, fmt.Errorf("invalid task index %d", sess.CurrentTask)
	}

	task := sess.Tasks[sess.CurrentTask]
	started := time.Now().UTC()
	task.Status = state.TaskInProgress
	task.StartedAt = &started

	startTrace := newTrace(NodeExecuteTask, "execution_started", "Starting: "+task.Title, task.ID, nil)

	resp, err := e.gen.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: executeSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(
				"Goal: %s\n\nTask to execute: %s\nDescription: %s\n\nPlease execute this task and provide the actual output/deliverable:",
				sess.Goal, task.Title, task.Description)},
		},
	})

	finished := time.Now().UTC()
	task.CompletedAt = &finished

	var endTrace state.TraceEntry
	if err != nil {
		task.Status = state.TaskFailed
		task.Error = fmt.Sprintf("execution failed: %v", err)
		endTrace = newTrace(NodeExecuteTask, "execution_failed",
			fmt.Sprintf("Failed: %s - %v", task.Title, err), task.ID, nil)
		e.logger.Warn("task failed", map[string]interface{}{
			"session": sess.ID,
			"task":    task.ID,
			"error":   err.Error(),
		})
	} else {
		task.Status = state.TaskCompleted
		task.Result = strings.TrimSpace(resp.Content)
		endTrace = newTrace(NodeExecuteTask, "execution_success",
			"Completed: "+task.Title, task.ID,
			map[string]any{"output_length": len(task.Result)})
	}

	// Only the mutated task travels in the delta; merge-by-id replaces it
	// in place.
	return state.Delta{
		Tasks:  []state.Task{task},
		Traces: []state.TraceEntry{startTrace, endTrace},
	}, nil
}

// reflect summarizes progress after each task. Generation failure here is
// session-fatal, matching analyze_goal.
func (e *Engine) reflect(ctx context.Context, sess *state.Session) (state.Delta, error) {
	if sess.CurrentTask < 0 || sess.CurrentTask >= len(sess.Tasks) {
		return state.Delta{}, fmt.Errorf("invalid task index %d", sess.CurrentTask)
	}
	task := sess.Tasks[sess.CurrentTask]

	completed, failed := sess.Counts()
	total := len(sess.Tasks)

	outcome := task.Result
	if outcome == "" {
		outcome = task.Error
	}
	resp, err := e.gen.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: reflectSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(
				"Task completed: %s\nStatus: %s\nResult: %s\n\nOverall progress: %d/%d completed, %d failed",
				task.Title, task.Status, truncate(outcome, 500), completed, total, failed)},
		},
	})
	if err != nil {
		return state.Delta{}, fmt.Errorf("reflection failed: %w", err)
	}

	trace := newTrace(NodeReflect, "reflection", resp.Content, task.ID, map[string]any{
		"completed":        completed,
		"failed":           failed,
		"total":            total,
		"progress_percent": (completed + failed) * 100 / total,
	})

	return state.Delta{
		Phase:    state.PhaseOf(state.PhaseReflecting),
		Messages: []state.Message{assistantMessage(resp.Content)},
		Traces:   []state.TraceEntry{trace},
	}, nil
}

// complete closes the session with a final summary of every task.
func (e *Engine) complete(sess *state.Session) state.Delta {
	completed, failed := sess.Counts()

	var summary strings.Builder
	fmt.Fprintf(&summary, "Execution complete!\n\n**Results:** %d/%d tasks completed", completed, len(sess.Tasks))
	if failed > 0 {
		fmt.Fprintf(&summary, ", %d failed", failed)
	}
	summary.WriteString("\n\n**Task Summary:**\n")
	for _, t := range sess.Tasks {
		marker := "✓"
		if t.Status != state.TaskCompleted {
			marker = "✗"
		}
		fmt.Fprintf(&summary, "- %s %s\n", marker, t.Title)
	}

	trace := newTrace(NodeComplete, "execution_complete",
		fmt.Sprintf("Finished: %d/%d tasks completed", completed, len(sess.Tasks)), "",
		map[string]any{"completed": completed, "failed": failed})

	return state.Delta{
		Phase:       state.PhaseOf(state.PhaseCompleted),
		CurrentTask: state.IntOf(state.NoTask),
		Messages:    []state.Message{assistantMessage(summary.String())},
		Traces:      []state.TraceEntry{trace},
	}
}
