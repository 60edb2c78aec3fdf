package memory

import "fmt"

// ValidationError reports input rejected at a boundary (empty content,
// unknown memory type, malformed importance). Nothing is written when
// one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a reference to a memory that does not exist.
// The store is left unchanged.
type NotFoundError struct {
	UserID string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("memory %s not found for user %s", e.ID, e.UserID)
}

// TransientStoreError wraps a vector-index failure that survived the
// bounded retry policy. Callers degrade rather than crash: context
// composition falls back to short-term only, consolidation aborts the
// current cycle without partial writes.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("vector index unavailable during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// EmbeddingServiceError wraps an embedding-provider failure (timeout or
// unavailability). Non-fatal: the affected turn stays buffered for a
// later consolidation attempt.
type EmbeddingServiceError struct {
	Err error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service: %v", e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// ExtractionServiceError wraps an extraction-provider failure. The
// consolidation cycle that hit it is skipped; buffered turns remain
// pending.
type ExtractionServiceError struct {
	Err error
}

func (e *ExtractionServiceError) Error() string {
	return fmt.Sprintf("extraction service: %v", e.Err)
}

func (e *ExtractionServiceError) Unwrap() error { return e.Err }
