package state

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrSessionNotFound is returned when a session id has no stored state.
var ErrSessionNotFound = errors.New("session not found")

// #region repository
// Repository persists AgentState by session id.
type Repository interface {
	Get(ctx context.Context, sessionID string) (AgentState, error)
	Put(ctx context.Context, s AgentState) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context, limit int) ([]SessionSummary, error)
	Close() error
}

// #endregion repository

// #region memory-store
// MemoryStore is a process-local Repository. Stored values are deep copies.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]AgentState
}

// NewMemoryStore creates an empty in-memory repository.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]AgentState)}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (AgentState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return AgentState{}, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s AgentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// List returns summaries, most recently updated first.
func (m *MemoryStore) List(_ context.Context, limit int) ([]SessionSummary, error) {
	m.mu.RLock()
	out := make([]SessionSummary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Summarize(s))
	}
	m.mu.RUnlock()
	sortSummaries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// #endregion memory-store

// #region helpers
func sortSummaries(out []SessionSummary) {
	slices.SortFunc(out, func(a, b SessionSummary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}

// #endregion helpers
