// Package store implements the chunk metadata store on BoltDB. It is
// the durable record of document lifecycle state and chunk text, keyed
// by the same identifier space as the vector index.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
)

var (
	bucketDocuments = []byte("documents")
	bucketChunks    = []byte("chunks")
	bucketDocChunks = []byte("doc_chunks")
	bucketManifest  = []byte("manifest")
	keyManifest     = []byte("index_manifest")
)

// BoltStore is a BoltDB-backed metadata store.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the metadata database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocuments, bucketChunks, bucketDocChunks, bucketManifest} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

type docMeta struct {
	Filename  string                `json:"filename"`
	Status    domain.DocumentStatus `json:"status"`
	CreatedAt int64                 `json:"created_at"`
	IndexedAt int64                 `json:"indexed_at,omitempty"`
}

type chunkMeta struct {
	DocID   string `json:"doc_id"`
	Ordinal int    `json:"ordinal"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Text    string `json:"text"`
}

// PutDocument stores or replaces a document record.
func (s *BoltStore) PutDocument(doc domain.Document) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := docMeta{
			Filename:  doc.Filename,
			Status:    doc.Status,
			CreatedAt: doc.CreatedAt.Unix(),
		}
		if !doc.IndexedAt.IsZero() {
			meta.IndexedAt = doc.IndexedAt.Unix()
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDocuments).Put([]byte(doc.ID), data)
	})
}

// GetDocument returns the document record for id.
func (s *BoltStore) GetDocument(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = decodeDocument(id, meta)
		return nil
	})
	return doc, err
}

// SetDocumentStatus updates the lifecycle status for id. Reaching
// StatusIndexed records the indexing timestamp.
func (s *BoltStore) SetDocumentStatus(id string, status domain.DocumentStatus) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		meta.Status = status
		if status == domain.StatusIndexed {
			meta.IndexedAt = time.Now().Unix()
		}
		updated, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
}

// ListDocuments returns all document records.
func (s *BoltStore) ListDocuments() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			docs = append(docs, decodeDocument(string(k), meta))
			return nil
		})
	})
	return docs, err
}

// DeleteDocument removes the document record. Chunks are removed
// separately via DeleteChunksByDocument.
func (s *BoltStore) DeleteDocument(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).Delete([]byte(id))
	})
}

// PutChunks writes all chunks of one document in a single transaction,
// so a metadata write failure never leaves a document half-recorded.
func (s *BoltStore) PutChunks(chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketChunks)
		dcb := tx.Bucket(bucketDocChunks)

		for _, chunk := range chunks {
			meta := chunkMeta{
				DocID:   chunk.DocID,
				Ordinal: chunk.Ordinal,
				Start:   chunk.Start,
				End:     chunk.End,
				Text:    chunk.Text,
			}
			data, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			if err := cb.Put([]byte(chunk.ID), data); err != nil {
				return err
			}
			if err := dcb.Put(docChunkKey(chunk.DocID, chunk.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetChunk returns the chunk record for id.
func (s *BoltStore) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: chunk %s", domain.ErrNotFound, id)
		}
		var meta chunkMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		chunk = decodeChunk(id, meta)
		return nil
	})
	return chunk, err
}

// GetChunksByDocument returns all chunks of a document sorted by
// ordinal position.
func (s *BoltStore) GetChunksByDocument(docID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketChunks)
		c := tx.Bucket(bucketDocChunks).Cursor()

		prefix := docChunkKey(docID, "")
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			chunkID := string(k[len(prefix):])
			data := cb.Get([]byte(chunkID))
			if data == nil {
				continue
			}
			var meta chunkMeta
			if err := json.Unmarshal(data, &meta); err != nil {
				return err
			}
			chunks = append(chunks, decodeChunk(chunkID, meta))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Cursor order is lexical over chunk ids; restore ordinal order.
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunks[j].Ordinal < chunks[j-1].Ordinal; j-- {
			chunks[j], chunks[j-1] = chunks[j-1], chunks[j]
		}
	}
	return chunks, nil
}

// DeleteChunksByDocument removes every chunk belonging to docID in one
// transaction.
func (s *BoltStore) DeleteChunksByDocument(docID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketChunks)
		dcb := tx.Bucket(bucketDocChunks)
		c := dcb.Cursor()

		prefix := docChunkKey(docID, "")
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			chunkID := k[len(prefix):]
			if err := cb.Delete(chunkID); err != nil {
				return err
			}
			if err := dcb.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountChunks returns the total number of chunk records, used by the
// index/metadata parity check.
func (s *BoltStore) CountChunks() (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketChunks).Stats().KeyN
		return nil
	})
	return count, err
}

// Close releases the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func docChunkKey(docID, chunkID string) []byte {
	return []byte(docID + "/" + chunkID)
}

func decodeDocument(id string, meta docMeta) domain.Document {
	doc := domain.Document{
		ID:        id,
		Filename:  meta.Filename,
		Status:    meta.Status,
		CreatedAt: time.Unix(meta.CreatedAt, 0),
	}
	if meta.IndexedAt != 0 {
		doc.IndexedAt = time.Unix(meta.IndexedAt, 0)
	}
	return doc
}

func decodeChunk(id string, meta chunkMeta) domain.Chunk {
	return domain.Chunk{
		ID:      id,
		DocID:   meta.DocID,
		Ordinal: meta.Ordinal,
		Start:   meta.Start,
		End:     meta.End,
		Text:    meta.Text,
	}
}
