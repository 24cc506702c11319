// Package memstore provides an in-memory metadata store. It backs the
// usecase tests and the embeddable quickstart; durable deployments use
// the BoltDB store.
package memstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"docqa/internal/domain"
)

type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]domain.Document
	chunks    map[string]domain.Chunk
	docChunks map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]domain.Document),
		chunks:    make(map[string]domain.Chunk),
		docChunks: make(map[string][]string),
	}
}

func (s *MemoryStore) PutDocument(doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryStore) GetDocument(id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return doc, nil
}

func (s *MemoryStore) SetDocumentStatus(id string, status domain.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	doc.Status = status
	if status == domain.StatusIndexed {
		doc.IndexedAt = time.Now()
	}
	s.docs[id] = doc
	return nil
}

func (s *MemoryStore) ListDocuments() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) PutChunks(chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
		s.docChunks[chunk.DocID] = append(s.docChunks[chunk.DocID], chunk.ID)
	}
	return nil
}

func (s *MemoryStore) GetChunk(id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("%w: chunk %s", domain.ErrNotFound, id)
	}
	return chunk, nil
}

func (s *MemoryStore) GetChunksByDocument(docID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.docChunks[docID]
	chunks := make([]domain.Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := s.chunks[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Ordinal < chunks[j].Ordinal })
	return chunks, nil
}

func (s *MemoryStore) DeleteChunksByDocument(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.docChunks[docID] {
		delete(s.chunks, id)
	}
	delete(s.docChunks, docID)
	return nil
}

func (s *MemoryStore) CountChunks() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
