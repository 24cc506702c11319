package domain

import "errors"

// Error taxonomy for the answering core. Failures from collaborators
// and stores are classified into one of these sentinels with
// fmt.Errorf("...: %w", ...) so callers can distinguish user-fixable
// from operator-fixable conditions with errors.Is. Nothing is retried
// inside the core.
var (
	// ErrConfiguration indicates invalid chunking or retrieval
	// parameters. Surfaced at startup, fatal.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates a vector whose length does not
	// match the index dimensionality. Fatal to the triggering call.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDuplicateKey indicates a chunk identifier that is already
	// present in the vector index.
	ErrDuplicateKey = errors.New("duplicate chunk id")

	// ErrExtraction indicates corrupt or unsupported document input.
	// Marks that document failed; other documents are unaffected.
	ErrExtraction = errors.New("text extraction failed")

	// ErrInvalidQuery indicates an empty or unusable question.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrCollaboratorUnavailable indicates an embedding or generation
	// backend failure (timeout, rate limit, malformed response).
	// Distinguishable from "no relevant documents".
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrIndexCorruption indicates a failure persisting or loading the
	// vector index. The process must not serve answers from a corrupt
	// or stale index.
	ErrIndexCorruption = errors.New("vector index corrupted")

	// ErrNotFound indicates a requested document or chunk does not exist.
	ErrNotFound = errors.New("not found")
)
