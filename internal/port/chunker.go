package port

import "docqa/internal/domain"

// Chunker splits cleaned document text into overlapping spans.
// Output must be deterministic and order-stable for identical input:
// downstream ordinals are used as tie-breaks in retrieval.
type Chunker interface {
	Chunk(text string) ([]domain.Span, error)
}
