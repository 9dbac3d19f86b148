package results

import (
	"context"
	"sync"

	"pixelpioneers.io/internal/sim/level"
)

type MemoryStore struct {
	mu      sync.RWMutex
	results []level.Result
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Record(_ context.Context, r level.Result) error {
	m.mu.Lock()
	m.results = append(m.results, r)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Top(_ context.Context, levelID string, n int) ([]level.Result, error) {
	m.mu.RLock()
	out := make([]level.Result, 0, len(m.results))
	for _, r := range m.results {
		if levelID == "" || r.LevelID == levelID {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sortResults(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
