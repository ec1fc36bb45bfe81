package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"RepoChat/backend/go/internal/models"
)

// MemoryRunStore keeps run records in process memory. Records are copied on
// the way in and out.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]models.IngestionRun
}

// NewMemoryRunStore creates an empty MemoryRunStore.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]models.IngestionRun)}
}

func (s *MemoryRunStore) Create(_ context.Context, run *models.IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("ingestion run %s already exists", run.ID)
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *MemoryRunStore) Get(_ context.Context, id string) (*models.IngestionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

func (s *MemoryRunStore) List(_ context.Context, limit int) ([]*models.IngestionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*models.IngestionRun, 0, len(s.runs))
	for _, r := range s.runs {
		run := r
		runs = append(runs, &run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].SubmittedAt.Equal(runs[j].SubmittedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].SubmittedAt.After(runs[j].SubmittedAt)
	})
	if limit = normalizeLimit(limit); len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryRunStore) Update(_ context.Context, run *models.IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return ErrRunNotFound
	}
	s.runs[run.ID] = *run
	return nil
}

var _ RunStore = (*MemoryRunStore)(nil)
