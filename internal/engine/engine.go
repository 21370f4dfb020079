// Package engine implements the phase state machine that drives a session
// from goal to completion.
//
// The graph is fixed:
//
//	analyze_goal → plan_todos → select_task → execute_task → reflect
//	                                ▲                          │
//	                                └──────── (pending left) ──┘
//	                                                           │
//	                                                        complete
//
// Every transition consumes the current session state and returns a partial
// delta; the caller persists and publishes each applied delta through the
// run hooks. All branching is concentrated in the single pending-task check
// after reflect.
package engine

import (
	"context"
	"fmt"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/taskmill/taskmill/internal/state"
)

// Node names, also recorded on trace entries.
const (
	NodeAnalyzeGoal = "analyze_goal"
	NodePlanTodos   = "plan_todos"
	NodeSelectTask  = "select_task"
	NodeExecuteTask = "execute_task"
	NodeReflect     = "reflect"
	NodeComplete    = "complete"
)

// Generator is the text-generation capability consumed by the engine.
// llm.Provider satisfies it.
type Generator interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Hooks observe a run. All are optional.
type Hooks struct {
	// NodeStart fires before a transition executes.
	NodeStart func(node string)
	// Applied fires after a delta has been merged; the new state is the
	// merged result. A non-nil error aborts the run (storage failure).
	Applied func(node string, d state.Delta, s *state.Session) error
	// Paused is consulted once per cycle, immediately before select_task.
	// An in-flight transition always completes before a pause takes effect.
	Paused func(s *state.Session) bool
}

// Engine executes the phase graph for one session at a time. It holds no
// per-session state and is safe for use across sessions.
type Engine struct {
	gen    Generator
	logger *logging.Logger
}

// New creates an engine backed by the given text-generation capability.
func New(gen Generator) *Engine {
	return &Engine{
		gen:    gen,
		logger: logging.New().WithComponent("engine"),
	}
}

// Run drives the state machine from entry until the session reaches a
// terminal phase or pauses. It returns the final state. A returned error
// means the run aborted (generation failure outside execute_task, invalid
// invocation, or a hook failure); the caller is responsible for surfacing
// it as a terminal session error.
func (e *Engine) Run(ctx context.Context, sess *state.Session, entry string, h Hooks) (*state.Session, error) {
	if entry == "" {
		entry = NodeAnalyzeGoal
	}

	ctx, runSpan := startRunSpan(ctx, sess.ID, sess.Goal)
	var runErr error
	defer func() { endRunSpan(runSpan, sess.Phase, runErr) }()

	node := entry
	for {
		if node == NodeSelectTask && h.Paused != nil && h.Paused(sess) {
			sess, runErr = e.apply(node, sess, e.pauseDelta(), h)
			return sess, runErr
		}

		if h.NodeStart != nil {
			h.NodeStart(node)
		}
		nodeCtx, span := startNodeSpan(ctx, node)

		var (
			d   state.Delta
			err error
		)
		switch node {
		case NodeAnalyzeGoal:
			d, err = e.analyzeGoal(nodeCtx, sess)
		case NodePlanTodos:
			d, err = e.planTodos(nodeCtx, sess)
		case NodeSelectTask:
			d = e.selectTask(sess)
		case NodeExecuteTask:
			d, err = e.executeTask(nodeCtx, sess)
		case NodeReflect:
			d, err = e.reflect(nodeCtx, sess)
		case NodeComplete:
			d = e.complete(sess)
		default:
			err = fmt.Errorf("unknown node %q", node)
		}
		endNodeSpan(span, err)

		if err != nil {
			runErr = fmt.Errorf("%s: %w", node, err)
			return sess, runErr
		}

		sess, err = e.apply(node, sess, d, h)
		if err != nil {
			runErr = err
			return sess, runErr
		}

		// plan_todos reports parse failures through the state, not as a
		// run error: the session is left non-progressable.
		if sess.Phase == state.PhaseError {
			return sess, nil
		}

		switch node {
		case NodeAnalyzeGoal:
			node = NodePlanTodos
		case NodePlanTodos:
			node = NodeSelectTask
		case NodeSelectTask:
			if sess.CurrentTask == state.NoTask {
				// Nothing pending on entry; close out the run.
				node = NodeComplete
			} else {
				node = NodeExecuteTask
			}
		case NodeExecuteTask:
			node = NodeReflect
		case NodeReflect:
			// The sole branch point in the graph.
			if sess.HasPending() {
				node = NodeSelectTask
			} else {
				node = NodeComplete
			}
		case NodeComplete:
			return sess, nil
		}
	}
}

// apply merges a delta and notifies the Applied hook.
func (e *Engine) apply(node string, sess *state.Session, d state.Delta, h Hooks) (*state.Session, error) {
	merged := state.Merge(sess, d)
	if h.Applied != nil {
		if err := h.Applied(node, d, merged); err != nil {
			return merged, fmt.Errorf("applying %s: %w", node, err)
		}
	}
	return merged, nil
}

// pauseDelta freezes the session at a phase boundary.
func (e *Engine) pauseDelta() state.Delta {
	return state.Delta{
		Phase:  state.PhaseOf(state.PhasePaused),
		Paused: state.BoolOf(true),
		Traces: []state.TraceEntry{
			newTrace(NodeSelectTask, "paused", "Execution paused before next task", "", nil),
		},
	}
}
