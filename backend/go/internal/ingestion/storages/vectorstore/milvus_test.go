package vectorstore

import (
	"context"
	"testing"

	"RepoChat/backend/go/internal/ingestion/schema"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

type fakeMilvus struct {
	collection string
	columns    []entity.Column
}

func (f *fakeMilvus) Upsert(_ context.Context, collName, _ string, columns ...entity.Column) (entity.Column, error) {
	f.collection = collName
	f.columns = columns
	return columns[0], nil
}

func TestMilvusIndex_UpsertColumns(t *testing.T) {
	fake := &fakeMilvus{}
	idx := &MilvusIndex{client: fake, collection: "repo_chunks"}

	if err := idx.Upsert(context.Background(), makeRecords(3)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if fake.collection != "repo_chunks" {
		t.Errorf("unexpected collection %s", fake.collection)
	}
	if len(fake.columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(fake.columns))
	}
	ids, ok := fake.columns[0].(*entity.ColumnVarChar)
	if !ok || ids.Name() != FieldID || ids.Len() != 3 {
		t.Fatalf("unexpected id column %#v", fake.columns[0])
	}
	if ids.Data()[2] != "chunk-2" {
		t.Errorf("unexpected id %s", ids.Data()[2])
	}
	vectors, ok := fake.columns[1].(*entity.ColumnFloatVector)
	if !ok || vectors.Dim() != 2 {
		t.Errorf("unexpected vector column %#v", fake.columns[1])
	}
}

func TestMilvusColumns_RejectsMixedDimensions(t *testing.T) {
	records := []schema.VectorRecord{
		{ID: "a", Values: []float32{1, 2}},
		{ID: "b", Values: []float32{1}},
	}
	if _, err := milvusColumns(records); err == nil {
		t.Error("expected an error for mixed dimensions")
	}
}
