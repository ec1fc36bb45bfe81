package schema

const (
	// MetadataKeySource is the metadata key holding the originating file path.
	MetadataKeySource = "source"
	// UnknownSource is stored when a chunk carries no source path.
	UnknownSource = "unknown"
)

// Document is one loaded repository file. It is created by a loader and is
// not modified afterwards.
type Document struct {
	// Text is the full file content.
	Text string

	// SourcePath is the repository-relative path of the file.
	SourcePath string
}

// Chunk is a window of a Document's text. It keeps the owning document's
// source path.
type Chunk struct {
	Text       string
	SourcePath string
}

// Source returns the chunk's source path, or UnknownSource when it is empty.
func (c Chunk) Source() string {
	if c.SourcePath == "" {
		return UnknownSource
	}
	return c.SourcePath
}

// VectorRecord is the unit written to a vector index.
type VectorRecord struct {
	// ID must be unique across a run; an existing record with the same ID is
	// overwritten by the index.
	ID string

	// Values is the embedding of the chunk the record was built from.
	Values []float32

	// Metadata carries at least MetadataKeySource.
	Metadata map[string]string
}

// RepoRef points at a remote repository.
type RepoRef struct {
	URL    string
	Branch string
	Token  string
}
