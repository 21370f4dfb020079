// Package store provides durable checkpoint storage for session state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/taskmill/taskmill/internal/state"
)

// ErrNotFound is returned when no snapshot exists for a session id.
var ErrNotFound = errors.New("session not found")

// Store persists full session snapshots keyed by session id.
//
// Save must be atomic with respect to concurrent readers: a Load never
// observes a half-written snapshot. Callers are responsible for serializing
// writes per session id.
type Store interface {
	// Save persists the full state, overwriting any prior snapshot.
	Save(ctx context.Context, sess *state.Session) error
	// Load returns the snapshot for id, or ErrNotFound.
	Load(ctx context.Context, id string) (*state.Session, error)
	// ListRecent returns up to limit session ids, most recently touched first.
	ListRecent(ctx context.Context, limit int) ([]string, error)
	Close() error
}

// MemoryStore is an in-process Store used for tests and ephemeral runs.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	touched   map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]byte),
		touched:   make(map[string]time.Time),
	}
}

// Save stores a deep snapshot of the session.
func (m *MemoryStore) Save(_ context.Context, sess *state.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[sess.ID] = data
	m.touched[sess.ID] = time.Now()
	return nil
}

// Load returns the stored snapshot, decoded into a fresh value.
func (m *MemoryStore) Load(_ context.Context, id string) (*state.Session, error) {
	m.mu.RLock()
	data, ok := m.snapshots[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var sess state.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListRecent returns session ids ordered by last save time, newest first.
func (m *MemoryStore) ListRecent(_ context.Context, limit int) ([]string, error) {
	type entry struct {
		id string
		at time.Time
	}

	m.mu.RLock()
	entries := make([]entry, 0, len(m.touched))
	for id, at := range m.touched {
		entries = append(entries, entry{id, at})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].at.Equal(entries[j].at) {
			return entries[i].at.After(entries[j].at)
		}
		return entries[i].id < entries[j].id
	})

	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
