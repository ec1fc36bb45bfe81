// Package ingesterr defines the error taxonomy of the ingestion pipeline.
//
// Collaborators return the stage-specific error types; the pipeline driver
// wraps the first unrecovered error in a StageError so the boundary can name
// the failing stage.
package ingesterr

import (
	"errors"
	"fmt"
)

// Stage identifies one step of an ingestion run.
type Stage string

const (
	StageConfig Stage = "config"
	StageLoad   Stage = "load"
	StageSplit  Stage = "split"
	StageEmbed  Stage = "embed"
	StageUpsert Stage = "upsert"
)

// ConfigError reports an invalid setting or a missing credential.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// LoadError reports a failure to fetch the repository documents.
type LoadError struct {
	Repo string
	Path string // empty when the failure is not tied to one file
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("load %s: %s: %v", e.Repo, e.Path, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Repo, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// EmbeddingError reports a failed or malformed embedding call. Call is
// 1-based; Total is the number of calls the input required.
type EmbeddingError struct {
	Model string
	Call  int
	Total int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding call %d of %d (model %s): %v", e.Call, e.Total, e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// UpsertError reports a failed batch upsert. Batch is 1-based; batches before
// it are already committed to the index.
type UpsertError struct {
	Index string
	Batch int
	Total int
	Err   error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert batch %d of %d into index %s: %v", e.Batch, e.Total, e.Index, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

// StageError tags an error with the pipeline stage it aborted.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage recorded on err, inferring it from the error type
// when no StageError is present. ok is false for unclassified errors.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	var (
		ce *ConfigError
		le *LoadError
		ee *EmbeddingError
		ue *UpsertError
	)
	switch {
	case errors.As(err, &ce):
		return StageConfig, true
	case errors.As(err, &le):
		return StageLoad, true
	case errors.As(err, &ee):
		return StageEmbed, true
	case errors.As(err, &ue):
		return StageUpsert, true
	}
	return "", false
}
