package library

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps the library for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[int]SavedPromptVariation
	nextID int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[int]SavedPromptVariation), nextID: 1}
}

func (m *MemoryStore) List(_ context.Context) ([]SavedPromptVariation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.items), nil
}

func (m *MemoryStore) Get(_ context.Context, id int) (SavedPromptVariation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[id]
	if !ok {
		return SavedPromptVariation{}, ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Save(_ context.Context, v SavedPromptVariation) (SavedPromptVariation, error) {
	v, err := prepare(v, time.Now())
	if err != nil {
		return v, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == 0 {
		v.ID = m.nextID
	}
	m.nextID = max(m.nextID, v.ID+1)
	m.items[v.ID] = v
	return v, nil
}

func (m *MemoryStore) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func sortedValues(items map[int]SavedPromptVariation) []SavedPromptVariation {
	out := make([]SavedPromptVariation, 0, len(items))
	for _, v := range items {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b SavedPromptVariation) int { return a.ID - b.ID })
	return out
}
