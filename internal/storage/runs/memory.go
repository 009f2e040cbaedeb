package runs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ballast/internal/core"
)

// MemoryStore is an in-memory run store, the default for tests and
// short-lived serve sessions.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]core.RunRecord
	order   []string // insertion order, oldest first
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]core.RunRecord),
	}
}

func (m *MemoryStore) SaveRun(ctx context.Context, record core.RunRecord) error {
	if record.ID == "" {
		return fmt.Errorf("run record has no id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, exists := m.records[record.ID]; !exists {
		m.order = append(m.order, record.ID)
	}
	m.records[record.ID] = record
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, id string) (core.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[id]
	if !ok {
		return core.RunRecord{}, core.WrapError(core.ErrRunNotFound, fmt.Errorf("run %q", id))
	}
	return record, nil
}

func (m *MemoryStore) ListRuns(ctx context.Context, limit int) ([]core.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]core.RunRecord, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		result = append(result, m.records[m.order[i]])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) Close() error { return nil }
