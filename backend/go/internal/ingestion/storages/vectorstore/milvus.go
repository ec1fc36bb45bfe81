package vectorstore

import (
	"context"
	"fmt"

	"RepoChat/backend/go/internal/database/milvus"
	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/schema"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// Schema fields of the pre-provisioned Milvus collection.
	FieldID        = "id"
	FieldEmbedding = "embedding"
	FieldSource    = schema.MetadataKeySource
)

// milvusUpserter is the part of the milvus-sdk-go client the index uses.
type milvusUpserter interface {
	Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
}

// MilvusIndex upserts records into a Milvus collection whose schema has a
// VarChar primary key "id", a FloatVector "embedding" and a VarChar "source".
type MilvusIndex struct {
	client     milvusUpserter
	collection string
}

// NewMilvusIndex creates an index writing to the client's configured collection.
func NewMilvusIndex(mc *milvus.MilvusClient) (*MilvusIndex, error) {
	if mc == nil || mc.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	return &MilvusIndex{client: mc.Client, collection: mc.Config.Collection}, nil
}

var _ interfaces.VectorIndex = (*MilvusIndex)(nil)

func (m *MilvusIndex) Name() string { return m.collection }

// Upsert writes records as one columnar upsert call.
func (m *MilvusIndex) Upsert(ctx context.Context, records []schema.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	cols, err := milvusColumns(records)
	if err != nil {
		return err
	}
	if _, err := m.client.Upsert(ctx, m.collection, "" /* default partition */, cols...); err != nil {
		return fmt.Errorf("failed to upsert data into Milvus: %w", err)
	}
	return nil
}

func milvusColumns(records []schema.VectorRecord) ([]entity.Column, error) {
	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	sources := make([]string, len(records))

	dim := len(records[0].Values)
	for i, r := range records {
		if len(r.Values) != dim {
			return nil, fmt.Errorf("record %s has dimension %d, expected %d", r.ID, len(r.Values), dim)
		}
		ids[i] = r.ID
		vectors[i] = r.Values
		sources[i] = r.Metadata[schema.MetadataKeySource]
	}

	return []entity.Column{
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnFloatVector(FieldEmbedding, dim, vectors),
		entity.NewColumnVarChar(FieldSource, sources),
	}, nil
}
