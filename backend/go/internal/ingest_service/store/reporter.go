package store

import (
	"context"
	"fmt"

	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/models"
)

// Reporter persists every progress event of a run into a RunStore.
type Reporter struct {
	store RunStore
}

// NewReporter creates a Reporter writing to store.
func NewReporter(store RunStore) *Reporter {
	return &Reporter{store: store}
}

// Report loads the run, applies ev and writes it back.
func (r *Reporter) Report(ctx context.Context, ev models.ProgressEvent) error {
	run, err := r.store.Get(ctx, ev.RunID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", ev.RunID, err)
	}
	if !ApplyEvent(run, ev) {
		return nil
	}
	if err := r.store.Update(ctx, run); err != nil {
		return fmt.Errorf("update run %s: %w", ev.RunID, err)
	}
	return nil
}

// ApplyEvent folds ev into run and reports whether run changed. Events for a
// run that already reached a terminal status are dropped.
func ApplyEvent(run *models.IngestionRun, ev models.ProgressEvent) bool {
	if run.Status.Terminal() {
		return false
	}
	run.Status = ev.Status
	run.Stage = ev.Stage
	run.Counters = ev.Counters
	run.Error = ev.Error
	run.UpdatedAt = ev.Timestamp
	if ev.Status.Terminal() {
		run.CompletedAt = ev.Timestamp
	}
	return true
}

var _ interfaces.ProgressReporter = (*Reporter)(nil)
