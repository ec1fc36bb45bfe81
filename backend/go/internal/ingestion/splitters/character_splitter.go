package splitters

import (
	"context"
	"fmt"

	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/schema"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// CharacterSplitter implements the Splitter interface with fixed-size
// character windows. Lengths are counted in Unicode code points.
type CharacterSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewCharacterSplitter creates a new CharacterSplitter. The overlap must be
// strictly smaller than the chunk size, otherwise the window never advances.
func NewCharacterSplitter(chunkSize, chunkOverlap int) (*CharacterSplitter, error) {
	if chunkSize <= 0 {
		return nil, &ingesterr.ConfigError{Field: "chunkSize", Reason: fmt.Sprintf("must be positive, got %d", chunkSize)}
	}
	if chunkOverlap < 0 {
		return nil, &ingesterr.ConfigError{Field: "chunkOverlap", Reason: fmt.Sprintf("must not be negative, got %d", chunkOverlap)}
	}
	if chunkOverlap >= chunkSize {
		return nil, &ingesterr.ConfigError{
			Field:  "chunkOverlap",
			Reason: fmt.Sprintf("overlap %d must be less than chunk size %d", chunkOverlap, chunkSize),
		}
	}
	return &CharacterSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
}

// Split windows every document into chunks of at most ChunkSize characters,
// advancing the window start by ChunkSize-ChunkOverlap until it passes the end
// of the text. A document that fits in one window yields exactly one chunk.
func (s *CharacterSplitter) Split(ctx context.Context, docs []schema.Document) ([]schema.Chunk, error) {
	step := s.ChunkSize - s.ChunkOverlap
	if s.ChunkSize <= 0 || step <= 0 {
		// Guard against a zero-value or hand-built splitter looping forever.
		return nil, &ingesterr.ConfigError{
			Field:  "chunkOverlap",
			Reason: fmt.Sprintf("overlap %d must be less than chunk size %d", s.ChunkOverlap, s.ChunkSize),
		}
	}

	var chunks []schema.Chunk
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		runes := []rune(doc.Text)
		if len(runes) == 0 {
			continue
		}
		if len(runes) <= s.ChunkSize {
			chunks = append(chunks, schema.Chunk{Text: doc.Text, SourcePath: doc.SourcePath})
			continue
		}

		for start := 0; start < len(runes); start += step {
			end := start + s.ChunkSize
			if end > len(runes) {
				end = len(runes)
			}
			chunks = append(chunks, schema.Chunk{
				Text:       string(runes[start:end]),
				SourcePath: doc.SourcePath,
			})
		}
	}
	return chunks, nil
}

// compile-time check to ensure CharacterSplitter implements the Splitter interface
var _ interfaces.Splitter = (*CharacterSplitter)(nil)
