package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"RepoChat/backend/go/internal/ingestion/schema"
)

// IDScheme selects how record identifiers are derived.
type IDScheme string

const (
	// IDSchemeTimestamp yields chunk-<unix millis>-<index>. Every run produces
	// fresh ids, so re-ingesting a repository accumulates duplicates.
	IDSchemeTimestamp IDScheme = "timestamp"
	// IDSchemeContent derives ids from source, position and text, so
	// re-ingesting an unchanged repository overwrites the same records.
	IDSchemeContent IDScheme = "content"
)

// ParseIDScheme validates s. The empty string selects IDSchemeTimestamp.
func ParseIDScheme(s string) (IDScheme, error) {
	switch IDScheme(s) {
	case "", IDSchemeTimestamp:
		return IDSchemeTimestamp, nil
	case IDSchemeContent:
		return IDSchemeContent, nil
	default:
		return "", &ingesterr.ConfigError{Field: "ingestion.idScheme", Reason: fmt.Sprintf("unsupported scheme %q", s)}
	}
}

// buildRecords pairs chunks with their vectors. stamp is the embedding
// completion time used by IDSchemeTimestamp.
func buildRecords(scheme IDScheme, stamp time.Time, chunks []schema.Chunk, vectors [][]float32) []schema.VectorRecord {
	records := make([]schema.VectorRecord, len(chunks))
	millis := stamp.UnixMilli()
	for i, c := range chunks {
		records[i] = schema.VectorRecord{
			ID:       recordID(scheme, millis, i, c),
			Values:   vectors[i],
			Metadata: map[string]string{schema.MetadataKeySource: c.Source()},
		}
	}
	return records
}

func recordID(scheme IDScheme, millis int64, idx int, c schema.Chunk) string {
	if scheme == IDSchemeContent {
		h := sha256.New()
		h.Write([]byte(c.Source()))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(idx)))
		h.Write([]byte{0})
		h.Write([]byte(c.Text))
		return hex.EncodeToString(h.Sum(nil))[:32]
	}
	return fmt.Sprintf("chunk-%d-%d", millis, idx)
}
