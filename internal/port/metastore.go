package port

import "docqa/internal/domain"

// MetadataStore is the durable record of documents and chunk text,
// keyed by the same identifier space as the vector index.
type MetadataStore interface {
	PutDocument(doc domain.Document) error

	GetDocument(id string) (domain.Document, error)

	// SetDocumentStatus updates the lifecycle status. Reaching
	// StatusIndexed records the indexing timestamp.
	SetDocumentStatus(id string, status domain.DocumentStatus) error

	ListDocuments() ([]domain.Document, error)

	DeleteDocument(id string) error

	// PutChunks writes all chunks of one document in a single
	// transaction.
	PutChunks(chunks []domain.Chunk) error

	GetChunk(id string) (domain.Chunk, error)

	GetChunksByDocument(docID string) ([]domain.Chunk, error)

	DeleteChunksByDocument(docID string) error

	CountChunks() (int, error)

	Close() error
}
