package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/taskmill/taskmill/internal/state"
)

// Both implementations must satisfy the same contract.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess := state.Initial("round-trip", "build a landing page")
			sess = state.Merge(sess, state.Delta{
				Phase: state.PhaseOf(state.PhaseExecuting),
				Tasks: []state.Task{state.NewTask("headline", "write the headline")},
				Traces: []state.TraceEntry{{
					Timestamp: time.Now().UTC().Truncate(time.Second),
					Node:      "plan_todos",
					Action:    "planning_complete",
					Message:   "created 1 task",
					Details:   map[string]any{"task_count": float64(1)},
				}},
				Messages: []state.Message{{
					Role:      "assistant",
					Content:   "on it",
					Timestamp: time.Now().UTC().Truncate(time.Second),
				}},
			})

			if err := s.Save(ctx, sess); err != nil {
				t.Fatalf("save: %v", err)
			}
			loaded, err := s.Load(ctx, "round-trip")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !reflect.DeepEqual(sess, loaded) {
				t.Errorf("round trip mismatch:\nsaved:  %+v\nloaded: %+v", sess, loaded)
			}
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background(), "nope")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess := state.Initial("overwrite", "goal")
			if err := s.Save(ctx, sess); err != nil {
				t.Fatalf("save: %v", err)
			}

			sess = state.Merge(sess, state.Delta{Phase: state.PhaseOf(state.PhaseCompleted)})
			if err := s.Save(ctx, sess); err != nil {
				t.Fatalf("second save: %v", err)
			}

			loaded, err := s.Load(ctx, "overwrite")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if loaded.Phase != state.PhaseCompleted {
				t.Errorf("expected overwritten snapshot, got phase %s", loaded.Phase)
			}
		})
	}
}

func TestStore_ListRecent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"first", "second", "third"} {
				if err := s.Save(ctx, state.Initial(id, "goal")); err != nil {
					t.Fatalf("save %s: %v", id, err)
				}
				time.Sleep(5 * time.Millisecond) // distinct updated_at
			}
			// Touch "first" so it becomes the most recent.
			sess, _ := s.Load(ctx, "first")
			if err := s.Save(ctx, sess); err != nil {
				t.Fatalf("touch: %v", err)
			}

			ids, err := s.ListRecent(ctx, 2)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(ids) != 2 {
				t.Fatalf("expected 2 ids, got %d", len(ids))
			}
			if ids[0] != "first" {
				t.Errorf("expected most recently touched first, got %v", ids)
			}
		})
	}
}
