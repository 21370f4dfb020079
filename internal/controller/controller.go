// Package controller owns session lifecycles: it starts runs, persists
// every applied delta, fans events out to observers, and services
// pause/resume requests.
package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/taskmill/taskmill/internal/broadcast"
	"github.com/taskmill/taskmill/internal/engine"
	"github.com/taskmill/taskmill/internal/state"
	"github.com/taskmill/taskmill/internal/store"
)

// Summary is the list-view projection of a session.
type Summary struct {
	ID        string      `json:"session_id"`
	Goal      string      `json:"goal"`
	Phase     state.Phase `json:"phase"`
	Tasks     int         `json:"task_count"`
	Completed int         `json:"completed_count"`
	Failed    int         `json:"failed_count"`
}

// Controller coordinates the engine, checkpoint store and event broker.
// One run executes per session at a time; concurrent sessions are fine.
type Controller struct {
	store  store.Store
	broker *broadcast.Broker
	engine *engine.Engine
	logger *logging.Logger

	mu     sync.Mutex
	active map[string]*runHandle

	wg sync.WaitGroup
}

// runHandle tracks an in-flight run so a pause request can reach it.
type runHandle struct {
	paused atomic.Bool
}

// New creates a controller.
func New(st store.Store, broker *broadcast.Broker, eng *engine.Engine) *Controller {
	return &Controller{
		store:  st,
		broker: broker,
		engine: eng,
		logger: logging.New().WithComponent("controller"),
		active: make(map[string]*runHandle),
	}
}

// Start creates a session for the goal and launches its run asynchronously.
// A caller-supplied sessionID is honored when non-empty; otherwise one is
// generated. The returned id is valid for streaming immediately.
func (c *Controller) Start(ctx context.Context, goal, sessionID string) (string, error) {
	if goal == "" {
		return "", fmt.Errorf("goal must not be empty")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	handle, err := c.claim(sessionID)
	if err != nil {
		return "", err
	}

	sess := state.Initial(sessionID, goal)
	if err := c.store.Save(ctx, sess); err != nil {
		c.release(sessionID)
		return "", fmt.Errorf("creating session: %w", err)
	}

	c.broker.Open(sessionID)
	c.logger.Info("session started", map[string]interface{}{
		"session": sessionID,
		"goal":    goal,
	})

	c.wg.Add(1)
	go c.run(sess, "", handle)
	return sessionID, nil
}

// Pause requests that the session stop before its next task. The flag is
// persisted so the intent survives a restart; an in-flight transition
// always completes first.
func (c *Controller) Pause(ctx context.Context, sessionID string) error {
	sess, err := c.store.Load(ctx, sessionID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if handle, ok := c.active[sessionID]; ok {
		handle.paused.Store(true)
	}
	c.mu.Unlock()

	sess = state.Merge(sess, state.Delta{Paused: state.BoolOf(true)})
	if err := c.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("persisting pause: %w", err)
	}
	c.logger.Info("pause requested", map[string]interface{}{"session": sessionID})
	return nil
}

// Resume continues a paused or interrupted session from its last
// checkpoint, re-entering the loop at task selection. An optional human
// message is appended to the conversation before execution continues.
// Resuming a session that already reached a terminal phase is a no-op.
func (c *Controller) Resume(ctx context.Context, sessionID, humanInput string) error {
	sess, err := c.store.Load(ctx, sessionID)
	if err != nil {
		return err
	}

	if sess.Phase == state.PhaseCompleted || sess.Phase == state.PhaseError {
		c.logger.Info("resume ignored for finished session", map[string]interface{}{
			"session": sessionID,
			"phase":   string(sess.Phase),
		})
		return nil
	}

	handle, err := c.claim(sessionID)
	if err != nil {
		return err
	}

	d := state.Delta{Paused: state.BoolOf(false)}
	if humanInput != "" {
		d.Messages = []state.Message{state.UserMessage(humanInput)}
	}
	sess = state.Merge(sess, d)
	if err := c.store.Save(ctx, sess); err != nil {
		c.release(sessionID)
		return fmt.Errorf("persisting resume: %w", err)
	}

	c.broker.Open(sessionID)
	c.logger.Info("session resumed", map[string]interface{}{
		"session":     sessionID,
		"human_input": humanInput != "",
	})

	c.wg.Add(1)
	go c.run(sess, engine.NodeSelectTask, handle)
	return nil
}

// GetState returns the authoritative checkpointed state of a session.
func (c *Controller) GetState(ctx context.Context, sessionID string) (*state.Session, error) {
	return c.store.Load(ctx, sessionID)
}

// Subscribe attaches a live observer to a session's event stream.
func (c *Controller) Subscribe(ctx context.Context, sessionID string) <-chan broadcast.Event {
	return c.broker.Subscribe(ctx, sessionID)
}

// ListSessions returns summaries of the most recently updated sessions.
func (c *Controller) ListSessions(ctx context.Context, limit int) ([]Summary, error) {
	ids, err := c.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		sess, err := c.store.Load(ctx, id)
		if err != nil {
			// Deleted between list and load; skip.
			continue
		}
		completed, failed := sess.Counts()
		summaries = append(summaries, Summary{
			ID:        sess.ID,
			Goal:      sess.Goal,
			Phase:     sess.Phase,
			Tasks:     len(sess.Tasks),
			Completed: completed,
			Failed:    failed,
		})
	}
	return summaries, nil
}

// Wait blocks until every in-flight run has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// claim registers a run for the session, rejecting a second concurrent run.
func (c *Controller) claim(sessionID string) (*runHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[sessionID]; ok {
		return nil, fmt.Errorf("session %s is already running", sessionID)
	}
	handle := &runHandle{}
	c.active[sessionID] = handle
	return handle, nil
}

func (c *Controller) release(sessionID string) {
	c.mu.Lock()
	delete(c.active, sessionID)
	c.mu.Unlock()
}

// run drives one engine run to a pause or a terminal phase. It uses a
// background context so request cancellation never kills a session.
func (c *Controller) run(sess *state.Session, entry string, handle *runHandle) {
	defer c.wg.Done()
	defer c.release(sess.ID)

	ctx := context.Background()
	id := sess.ID

	final, err := c.engine.Run(ctx, sess, entry, engine.Hooks{
		NodeStart: func(node string) {
			c.broker.Publish(id, broadcast.NewEvent(broadcast.TypeNodeStart, id,
				map[string]any{"node": node}))
		},
		Applied: func(node string, d state.Delta, s *state.Session) error {
			if err := c.store.Save(ctx, s); err != nil {
				return err
			}
			c.publishDelta(id, node, d)
			return nil
		},
		Paused: func(s *state.Session) bool {
			return handle.paused.Load() || s.Paused
		},
	})

	switch {
	case err != nil:
		c.logger.Error("run aborted", map[string]interface{}{
			"session": id,
			"error":   err.Error(),
		})
		failed := state.Merge(final, state.Delta{
			Phase: state.PhaseOf(state.PhaseError),
			Error: state.StringOf(err.Error()),
		})
		if saveErr := c.store.Save(ctx, failed); saveErr != nil {
			c.logger.Error("failed to checkpoint error state", map[string]interface{}{
				"session": id,
				"error":   saveErr.Error(),
			})
		}
		c.broker.Publish(id, broadcast.NewEvent(broadcast.TypeError, id,
			map[string]any{"error": err.Error()}))

	case final.Phase == state.PhaseError:
		c.broker.Publish(id, broadcast.NewEvent(broadcast.TypeError, id,
			map[string]any{"error": final.Error}))

	case final.Phase == state.PhaseCompleted:
		completed, failed := final.Counts()
		c.broker.Publish(id, broadcast.NewEvent(broadcast.TypeComplete, id, map[string]any{
			"completed": completed,
			"failed":    failed,
			"total":     len(final.Tasks),
		}))

	default:
		// Paused: the stream stays open for the eventual resume.
		c.logger.Info("run paused", map[string]interface{}{"session": id})
	}
}

// publishDelta turns one applied delta into its stream events. Order within
// a transition is fixed: tasks, phase, traces, messages.
func (c *Controller) publishDelta(id, node string, d state.Delta) {
	if len(d.Tasks) > 0 {
		c.broker.Publish(id, broadcast.NewEvent(broadcast.TypeTasksUpdate, id,
			map[string]any{"tasks": d.Tasks}))
	}
	if d.Phase != nil {
		c.broker.Publish(id, broadcast.NewEvent(broadcast.TypePhaseChange, id,
			map[string]any{"phase": string(*d.Phase)}))
	}
	for _, tr := range d.Traces {
		c.broker.Publish(id, broadcast.NewEvent(broadcast.TypeTrace, id,
			map[string]any{"trace": tr}))
	}
	for _, m := range d.Messages {
		c.broker.Publish(id, broadcast.NewEvent(broadcast.TypeMessage, id,
			map[string]any{"message": m}))
	}
	c.broker.Publish(id, broadcast.NewEvent(broadcast.TypeNodeEnd, id,
		map[string]any{"node": node}))
}
