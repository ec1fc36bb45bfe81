package store

import (
	"context"
	"errors"

	"RepoChat/backend/go/internal/models"
)

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("ingestion run not found")

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 20

// RunStore defines the interface for ingestion run persistence.
type RunStore interface {
	Create(ctx context.Context, run *models.IngestionRun) error
	Get(ctx context.Context, id string) (*models.IngestionRun, error)
	// List returns the most recently submitted runs first.
	List(ctx context.Context, limit int) ([]*models.IngestionRun, error)
	Update(ctx context.Context, run *models.IngestionRun) error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
