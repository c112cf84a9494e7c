// internal/adapter/storage/memory.go

package storage

import (
	"context"
	"sort"
	"sync"

	"trendwire/internal/domain/trend"
)

// MemoryStore is an in-memory trend.StateStore used in tests and for
// single-process deployments without Postgres. States are deep-copied on
// both save and load so callers never share memory with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*trend.TrendState
	spikes map[string][]trend.Spike
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*trend.TrendState),
		spikes: make(map[string][]trend.Spike),
	}
}

// Load returns the stored state, trend.ErrNotFound when absent.
func (s *MemoryStore) Load(_ context.Context, userID string) (*trend.TrendState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[userID]
	if !ok {
		return nil, trend.ErrNotFound
	}
	return state.Clone(), nil
}

// Save atomically replaces the user's state record.
func (s *MemoryStore) Save(_ context.Context, userID string, state *trend.TrendState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[userID] = state.Clone()
	return nil
}

// AppendSpikeHistory appends the spikes to the user's history.
func (s *MemoryStore) AppendSpikeHistory(_ context.Context, userID string, spikes []trend.Spike) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spikes[userID] = append(s.spikes[userID], spikes...)
	return nil
}

// SpikeHistory returns the user's recorded spikes, newest first, optionally
// scoped to one term.
func (s *MemoryStore) SpikeHistory(_ context.Context, userID, term string, limit int) ([]trend.Spike, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []trend.Spike
	for _, sp := range s.spikes[userID] {
		if term != "" && sp.Term != term {
			continue
		}
		out = append(out, sp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
