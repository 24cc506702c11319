package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Manifest pins the parameters an index was built with. The embedding
// model and dimensionality must stay constant for the lifetime of one
// index; a mismatch means the corpus must be re-ingested from scratch.
type Manifest struct {
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
	CreatedAt      int64  `json:"created_at"`
}

// GetManifest returns the stored manifest, or nil if none has been
// written yet (fresh store).
func (s *BoltStore) GetManifest() (*Manifest, error) {
	var m *Manifest
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketManifest).Get(keyManifest)
		if data == nil {
			return nil
		}
		m = &Manifest{}
		return json.Unmarshal(data, m)
	})
	return m, err
}

// PutManifest stores the manifest, stamping it if unstamped.
func (s *BoltStore) PutManifest(m Manifest) error {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().Unix()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketManifest).Put(keyManifest, data)
	})
}

// Mismatch returns a human-readable reason the stored manifest is
// incompatible with the wanted parameters, or "" when they agree.
func (m *Manifest) Mismatch(want Manifest) string {
	switch {
	case m.EmbeddingModel != want.EmbeddingModel:
		return fmt.Sprintf("embedding model changed from %q to %q", m.EmbeddingModel, want.EmbeddingModel)
	case m.Dimension != want.Dimension:
		return fmt.Sprintf("embedding dimension changed from %d to %d", m.Dimension, want.Dimension)
	case m.ChunkSize != want.ChunkSize:
		return fmt.Sprintf("chunk size changed from %d to %d", m.ChunkSize, want.ChunkSize)
	case m.ChunkOverlap != want.ChunkOverlap:
		return fmt.Sprintf("chunk overlap changed from %d to %d", m.ChunkOverlap, want.ChunkOverlap)
	}
	return ""
}
