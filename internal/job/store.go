package job

import (
	"context"
	"sync"
)

// Store persists job records across lifecycle updates.
type Store interface {
	// Save writes the full job record, creating or overwriting it.
	Save(ctx context.Context, j Job) error
	// Get returns the job for id, or ErrJobNotFound.
	Get(ctx context.Context, id string) (Job, error)
}

// MemoryStore is an in-process Store used by tests and the one-shot CLI path.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (m *MemoryStore) Save(ctx context.Context, j Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return j, nil
}
