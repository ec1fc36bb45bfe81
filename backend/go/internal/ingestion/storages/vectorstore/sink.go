package vectorstore

import (
	"context"
	"fmt"

	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/schema"
	"RepoChat/backend/go/pkg/logger"
)

// DefaultBatchSize is the number of records per upsert call.
const DefaultBatchSize = 100

// BatchFunc is called after each committed batch with the number of batches
// completed so far and the total.
type BatchFunc func(done, total int)

// Sink ships records to a VectorIndex in contiguous batches, one batch at a
// time and in order.
type Sink struct {
	index     interfaces.VectorIndex
	batchSize int
	log       *logger.Logger
}

// NewSink creates a Sink. batchSize must be positive.
func NewSink(index interfaces.VectorIndex, batchSize int, log *logger.Logger) (*Sink, error) {
	if batchSize <= 0 {
		return nil, &ingesterr.ConfigError{Field: "ingestion.batchSize", Reason: "must be positive"}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Sink{index: index, batchSize: batchSize, log: log}, nil
}

// Batches returns the number of batches n records are shipped in.
func (s *Sink) Batches(n int) int {
	return (n + s.batchSize - 1) / s.batchSize
}

// Write upserts records. A failed batch stops the write with an
// *ingesterr.UpsertError; the batches before it stay committed.
func (s *Sink) Write(ctx context.Context, records []schema.VectorRecord, onBatch BatchFunc) error {
	total := s.Batches(len(records))
	for k := 1; k <= total; k++ {
		start := (k - 1) * s.batchSize
		end := min(start+s.batchSize, len(records))
		batch := records[start:end]

		s.log.Info(fmt.Sprintf("Upserting batch %d of %d... (%d vectors)", k, total, len(batch)))
		if err := s.index.Upsert(ctx, batch); err != nil {
			return &ingesterr.UpsertError{Index: s.index.Name(), Batch: k, Total: total, Err: err}
		}
		if onBatch != nil {
			onBatch(k, total)
		}
	}
	return nil
}
