package ingest

import "errors"

var (
	// ErrStructureInvalid is returned when phase-1 output fails schema or
	// semantic validation (non-dense indices, empty title/text).
	ErrStructureInvalid = errors.New("ingest: chapter structure failed validation")

	// ErrDoctrineInvalid is returned when a phase-2 chapter extraction
	// fails schema or semantic validation (unknown domain, dangling
	// cross-reference, empty list entry).
	ErrDoctrineInvalid = errors.New("ingest: doctrine extraction failed validation")

	// ErrEmbeddingFailed is returned when every chunk in a batch fails
	// embedding, both as a batch and individually.
	ErrEmbeddingFailed = errors.New("ingest: embedding failed")
)
