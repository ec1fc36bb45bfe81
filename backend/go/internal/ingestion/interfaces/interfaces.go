package interfaces

import (
	"context"

	"RepoChat/backend/go/internal/ingestion/schema"
	"RepoChat/backend/go/internal/models"
)

// Loader fetches every non-ignored file of a repository as a Document.
// Failures are returned as *ingesterr.LoadError.
type Loader interface {
	Load(ctx context.Context, ref schema.RepoRef, ignore []string) ([]schema.Document, error)
}

// Splitter splits Documents into ordered, overlapping Chunks.
type Splitter interface {
	Split(ctx context.Context, docs []schema.Document) ([]schema.Chunk, error)
}

// EmbeddingModel maps texts to vectors. The result is index-aligned with the
// input. Failures are returned as *ingesterr.EmbeddingError.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is a remote index that accepts upserts. It is pre-provisioned
// with the embedding model's dimensionality; implementations never create it.
type VectorIndex interface {
	Name() string
	Upsert(ctx context.Context, records []schema.VectorRecord) error
}

// DocumentArchive keeps a copy of loaded documents for later inspection.
type DocumentArchive interface {
	Put(ctx context.Context, prefix string, docs []schema.Document) error
}

// ProgressReporter receives every progress change of a run. A reporter error
// never fails the run.
type ProgressReporter interface {
	Report(ctx context.Context, event models.ProgressEvent) error
}
