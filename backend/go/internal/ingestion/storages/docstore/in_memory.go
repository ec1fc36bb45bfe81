package docstore

import (
	"context"
	"path"
	"sort"
	"sync"

	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/schema"
)

// InMemoryDocStore is a thread-safe, in-memory DocumentArchive.
// Documents are keyed by "<prefix>/<source path>".
type InMemoryDocStore struct {
	mu   sync.RWMutex
	docs map[string]schema.Document
}

// NewInMemoryDocStore creates a new instance of InMemoryDocStore.
func NewInMemoryDocStore() *InMemoryDocStore {
	return &InMemoryDocStore{
		docs: make(map[string]schema.Document),
	}
}

// Put stores docs under prefix, replacing any document with the same key.
func (s *InMemoryDocStore) Put(ctx context.Context, prefix string, docs []schema.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.docs[objectKey(prefix, doc.SourcePath)] = doc
	}
	return nil
}

// Get returns the document stored under key.
func (s *InMemoryDocStore) Get(key string) (schema.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	return doc, ok
}

// Keys returns every stored key in lexical order.
func (s *InMemoryDocStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func objectKey(prefix, sourcePath string) string {
	return path.Join(prefix, sourcePath)
}

// compile-time check to ensure InMemoryDocStore implements the DocumentArchive interface
var _ interfaces.DocumentArchive = (*InMemoryDocStore)(nil)
