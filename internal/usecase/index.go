package usecase

import (
	"fmt"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// Indexer drives chunking, embedding and storage for one document at a
// time. Vectors and chunk metadata live in two stores with no shared
// transaction, so the pipeline orders writes as a saga: vectors first,
// then metadata, then persist, compensating by removing vectors when a
// later step fails. A process-wide lock serializes writers because
// persisting overwrites the whole on-disk index.
type Indexer struct {
	chunker     port.Chunker
	embedder    port.Embedder
	index       port.VectorIndex
	meta        port.MetadataStore
	invalidator CacheInvalidator

	mu sync.Mutex
}

// CacheInvalidator is notified after every successful corpus mutation
// so cached answers derived from the old corpus are discarded.
type CacheInvalidator interface {
	Invalidate()
}

// NewIndexer creates an indexing pipeline over the given collaborators.
func NewIndexer(chunker port.Chunker, embedder port.Embedder, index port.VectorIndex, meta port.MetadataStore) (*Indexer, error) {
	if embedder.Dimension() != index.Dimension() {
		return nil, fmt.Errorf("%w: embedder produces %d-dimensional vectors, index expects %d",
			domain.ErrConfiguration, embedder.Dimension(), index.Dimension())
	}
	return &Indexer{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		meta:     meta,
	}, nil
}

// SetInvalidator registers a cache to invalidate after successful
// writes. Deployments without an answer cache skip this.
func (ix *Indexer) SetInvalidator(inv CacheInvalidator) {
	ix.invalidator = inv
}

func (ix *Indexer) invalidate() {
	if ix.invalidator != nil {
		ix.invalidator.Invalidate()
	}
}

// IndexDocument chunks and embeds cleanedText and makes it searchable
// under docID, which must already be registered in the metadata store.
// Returns the number of chunks indexed. On any failure the document is
// marked failed and no partial chunks remain queryable.
func (ix *Indexer) IndexDocument(docID, cleanedText string) (int, error) {
	spans, err := ix.chunker.Chunk(cleanedText)
	if err != nil {
		ix.markFailed(docID)
		return 0, fmt.Errorf("chunking failed for %s: %w", docID, err)
	}

	// An empty document legitimately contributes nothing to retrieval.
	if len(spans) == 0 {
		if err := ix.meta.SetDocumentStatus(docID, domain.StatusIndexed); err != nil {
			return 0, fmt.Errorf("failed to mark %s indexed: %w", docID, err)
		}
		logger.Info("document %s produced no chunks", docID)
		return 0, nil
	}

	chunks := make([]domain.Chunk, len(spans))
	texts := make([]string, len(spans))
	for i, span := range spans {
		chunks[i] = domain.Chunk{
			ID:      chunkID(docID, i),
			DocID:   docID,
			Ordinal: i,
			Start:   span.Start,
			End:     span.End,
			Text:    span.Text,
		}
		texts[i] = span.Text
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// All embeddings must succeed before anything is written, so a
	// mid-document embedding failure leaves nothing to roll back.
	vectors, err := ix.embedder.Embed(texts)
	if err != nil {
		ix.markFailed(docID)
		return 0, fmt.Errorf("embedding failed for %s: %w", docID, err)
	}
	if len(vectors) != len(chunks) {
		ix.markFailed(docID)
		return 0, fmt.Errorf("%w: embedder returned %d vectors for %d chunks of %s",
			domain.ErrCollaboratorUnavailable, len(vectors), len(chunks), docID)
	}

	added := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ix.index.Add(chunk.ID, vectors[i]); err != nil {
			ix.compensate(docID, added, false)
			return 0, fmt.Errorf("vector write failed for %s: %w", chunk.ID, err)
		}
		added = append(added, chunk.ID)
	}

	if err := ix.meta.PutChunks(chunks); err != nil {
		ix.compensate(docID, added, false)
		return 0, fmt.Errorf("metadata write failed for %s: %w", docID, err)
	}

	if err := ix.index.Persist(); err != nil {
		ix.compensate(docID, added, true)
		return 0, fmt.Errorf("index persist failed for %s: %w", docID, err)
	}

	if err := ix.meta.SetDocumentStatus(docID, domain.StatusIndexed); err != nil {
		return 0, fmt.Errorf("failed to mark %s indexed: %w", docID, err)
	}

	ix.invalidate()
	logger.Info("indexed document %s: %d chunks, %d vectors total", docID, len(chunks), ix.index.Count())
	return len(chunks), nil
}

// RemoveDocument deletes a document and all of its chunks and vectors
// together, then persists the shrunken index.
func (ix *Indexer) RemoveDocument(docID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, err := ix.meta.GetDocument(docID); err != nil {
		return err
	}

	chunks, err := ix.meta.GetChunksByDocument(docID)
	if err != nil {
		return fmt.Errorf("failed to list chunks of %s: %w", docID, err)
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}

	if err := ix.index.Remove(ids); err != nil {
		return fmt.Errorf("failed to remove vectors of %s: %w", docID, err)
	}
	if err := ix.meta.DeleteChunksByDocument(docID); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", docID, err)
	}
	if err := ix.meta.DeleteDocument(docID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	if err := ix.index.Persist(); err != nil {
		return fmt.Errorf("index persist failed after removing %s: %w", docID, err)
	}

	ix.invalidate()
	logger.Info("removed document %s and %d chunks", docID, len(ids))
	return nil
}

// compensate undoes just-added vectors (and, after a failed persist,
// the just-written chunk metadata) so the adapter count returns to its
// pre-call value, then marks the document failed.
func (ix *Indexer) compensate(docID string, added []string, dropMetadata bool) {
	if err := ix.index.Remove(added); err != nil {
		logger.Warn("compensation failed, %d vectors of %s may be dangling: %v", len(added), docID, err)
	}
	if dropMetadata {
		if err := ix.meta.DeleteChunksByDocument(docID); err != nil {
			logger.Warn("compensation failed, chunk metadata of %s may be dangling: %v", docID, err)
		}
	}
	ix.markFailed(docID)
}

func (ix *Indexer) markFailed(docID string) {
	if err := ix.meta.SetDocumentStatus(docID, domain.StatusFailed); err != nil {
		logger.Warn("failed to mark document %s failed: %v", docID, err)
	}
}

// chunkID derives the corpus-unique chunk identifier from the owning
// document and the chunk's ordinal position.
func chunkID(docID string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, ordinal)
}
