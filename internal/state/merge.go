package state

import "time"

// Delta is a partial state update produced by one phase transition.
// Nil pointer fields and nil slices leave the corresponding session field
// untouched.
type Delta struct {
	Phase       *Phase
	Goal        *string
	Tasks       []Task
	CurrentTask *int
	Messages    []Message
	Traces      []TraceEntry
	Paused      *bool
	Error       *string
}

// Merge applies a delta to a session and returns the merged result as a new
// value. It never mutates its input. Three rules apply:
//
//   - Tasks merge by id: a delta task with a known id replaces the existing
//     task in place, a new id appends, untouched tasks are retained.
//   - Traces and messages are append-only.
//   - Scalar fields are last-write-wins when present in the delta.
func Merge(s *Session, d Delta) *Session {
	out := *s

	out.Tasks = mergeTasks(s.Tasks, d.Tasks)
	out.Traces = append(append([]TraceEntry{}, s.Traces...), d.Traces...)
	out.Messages = append(append([]Message{}, s.Messages...), d.Messages...)

	if d.Phase != nil {
		out.Phase = *d.Phase
	}
	if d.Goal != nil {
		out.Goal = *d.Goal
	}
	if d.CurrentTask != nil {
		out.CurrentTask = *d.CurrentTask
	}
	if d.Paused != nil {
		out.Paused = *d.Paused
	}
	if d.Error != nil {
		out.Error = *d.Error
	}

	out.UpdatedAt = time.Now().UTC()
	return &out
}

// mergeTasks implements merge-by-id. Existing order is preserved; replaced
// tasks keep their position, unknown ids append in delta order.
func mergeTasks(existing, incoming []Task) []Task {
	out := append([]Task{}, existing...)
	if len(incoming) == 0 {
		return out
	}

	index := make(map[string]int, len(out))
	for i, t := range out {
		index[t.ID] = i
	}

	for _, t := range incoming {
		if i, ok := index[t.ID]; ok {
			out[i] = t
			continue
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}

// Helper constructors for delta pointer fields.

func phasePtr(p Phase) *Phase { return &p }

// PhaseOf returns a pointer suitable for Delta.Phase.
func PhaseOf(p Phase) *Phase { return phasePtr(p) }

// IntOf returns a pointer suitable for Delta.CurrentTask.
func IntOf(i int) *int { return &i }

// BoolOf returns a pointer suitable for Delta.Paused.
func BoolOf(b bool) *bool { return &b }

// StringOf returns a pointer suitable for Delta.Goal and Delta.Error.
func StringOf(v string) *string { return &v }
