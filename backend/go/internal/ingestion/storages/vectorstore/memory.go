package vectorstore

import (
	"context"
	"sort"
	"sync"

	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/schema"
)

// MemoryIndex is a process-local VectorIndex used for dry runs and tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	name    string
	records map[string]schema.VectorRecord
	calls   []int
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(name string) *MemoryIndex {
	return &MemoryIndex{name: name, records: make(map[string]schema.VectorRecord)}
}

var _ interfaces.VectorIndex = (*MemoryIndex)(nil)

func (m *MemoryIndex) Name() string { return m.name }

// Upsert stores copies of records, replacing existing ids.
func (m *MemoryIndex) Upsert(ctx context.Context, records []schema.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		values := append([]float32(nil), r.Values...)
		meta := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		m.records[r.ID] = schema.VectorRecord{ID: r.ID, Values: values, Metadata: meta}
	}
	m.calls = append(m.calls, len(records))
	return nil
}

// Len returns the number of distinct ids stored.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Get returns the record stored under id.
func (m *MemoryIndex) Get(id string) (schema.VectorRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	return r, ok
}

// IDs returns the stored ids in lexical order.
func (m *MemoryIndex) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UpsertCalls returns the size of every Upsert call received, in order.
func (m *MemoryIndex) UpsertCalls() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.calls...)
}
