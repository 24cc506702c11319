// Package index implements the vector store adapter: an exact
// nearest-neighbor index over float32 vectors with an explicit on-disk
// snapshot. Brute-force search keeps results exact and deterministic;
// the snapshot is the whole index, so writers must be serialized by
// the indexing pipeline.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// FlatIndex is an in-memory flat vector index persisted as a single
// JSON snapshot file. Insertion order is preserved so that equal
// search distances break ties deterministically.
type FlatIndex struct {
	mu        sync.RWMutex
	path      string
	dimension int
	ids       []string
	vectors   [][]float32
	byID      map[string]int
	loaded    bool
}

// snapshot is the on-disk representation of the full index.
type snapshot struct {
	Dimension int         `json:"dimension"`
	IDs       []string    `json:"ids"`
	Vectors   [][]float32 `json:"vectors"`
}

// NewFlatIndex creates an empty index backed by the snapshot file at
// path. Call Load before serving reads so first-run behavior is
// well-defined.
func NewFlatIndex(path string, dimension int) (*FlatIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: index dimension must be positive, got %d", domain.ErrConfiguration, dimension)
	}
	return &FlatIndex{
		path:      path,
		dimension: dimension,
		byID:      make(map[string]int),
	}, nil
}

// Add inserts a vector under id. A mismatched vector is rejected
// before insertion; duplicate ids are rejected to keep the identifier
// space injective.
func (x *FlatIndex) Add(id string, vector []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(vector) != x.dimension {
		return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, x.dimension, len(vector))
	}
	if _, exists := x.byID[id]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, id)
	}

	x.byID[id] = len(x.ids)
	x.ids = append(x.ids, id)
	x.vectors = append(x.vectors, vector)
	return nil
}

// Search returns up to k hits ordered ascending by squared L2
// distance. An empty index yields an empty result.
func (x *FlatIndex) Search(query []float32, k int) ([]port.VectorHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(query), x.dimension)
	}
	if k <= 0 || len(x.ids) == 0 {
		return nil, nil
	}

	hits := make([]port.VectorHit, len(x.ids))
	for i, vec := range x.vectors {
		hits[i] = port.VectorHit{ID: x.ids[i], Distance: squaredL2(query, vec)}
	}

	// Stable sort over the insertion-ordered slice: equal distances
	// keep earlier-added vectors first.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Remove deletes the given ids, preserving the insertion order of the
// remaining vectors. Unknown ids are ignored.
func (x *FlatIndex) Remove(ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	keptIDs := x.ids[:0]
	keptVectors := x.vectors[:0]
	for i, id := range x.ids {
		if _, gone := drop[id]; gone {
			continue
		}
		keptIDs = append(keptIDs, id)
		keptVectors = append(keptVectors, x.vectors[i])
	}
	x.ids = keptIDs
	x.vectors = keptVectors

	x.byID = make(map[string]int, len(x.ids))
	for i, id := range x.ids {
		x.byID[id] = i
	}
	return nil
}

// Persist writes the full index to the snapshot file. The write goes
// through a temp file and rename so a crash never leaves a truncated
// snapshot behind. Any I/O failure is surfaced as index corruption.
func (x *FlatIndex) Persist() error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	snap := snapshot{
		Dimension: x.dimension,
		IDs:       x.ids,
		Vectors:   x.vectors,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", domain.ErrIndexCorruption, err)
	}

	dir := filepath.Dir(x.path)
	tmp, err := os.CreateTemp(dir, ".vectors-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp snapshot: %v", domain.ErrIndexCorruption, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write snapshot: %v", domain.ErrIndexCorruption, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close snapshot: %v", domain.ErrIndexCorruption, err)
	}
	if err := os.Rename(tmpName, x.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace snapshot: %v", domain.ErrIndexCorruption, err)
	}
	return nil
}

// Load replaces the in-memory index with the persisted snapshot. A
// missing snapshot file initializes an empty index. A snapshot that
// cannot be decoded, or whose dimensionality does not match, is
// corruption and is never silently repaired.
func (x *FlatIndex) Load() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	data, err := os.ReadFile(x.path)
	if err != nil {
		if os.IsNotExist(err) {
			x.ids = nil
			x.vectors = nil
			x.byID = make(map[string]int)
			x.loaded = true
			return nil
		}
		return fmt.Errorf("%w: read snapshot: %v", domain.ErrIndexCorruption, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: decode snapshot: %v", domain.ErrIndexCorruption, err)
	}
	if snap.Dimension != x.dimension {
		return fmt.Errorf("%w: snapshot dimension %d, index configured for %d", domain.ErrIndexCorruption, snap.Dimension, x.dimension)
	}
	if len(snap.IDs) != len(snap.Vectors) {
		return fmt.Errorf("%w: snapshot has %d ids but %d vectors", domain.ErrIndexCorruption, len(snap.IDs), len(snap.Vectors))
	}

	byID := make(map[string]int, len(snap.IDs))
	for i, id := range snap.IDs {
		if len(snap.Vectors[i]) != snap.Dimension {
			return fmt.Errorf("%w: vector %s has %d dimensions", domain.ErrIndexCorruption, id, len(snap.Vectors[i]))
		}
		if _, dup := byID[id]; dup {
			return fmt.Errorf("%w: duplicate id %s in snapshot", domain.ErrIndexCorruption, id)
		}
		byID[id] = i
	}

	x.ids = snap.IDs
	x.vectors = snap.Vectors
	x.byID = byID
	x.loaded = true
	return nil
}

// Count returns the number of vectors currently indexed.
func (x *FlatIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Dimension returns the fixed vector dimensionality of the index.
func (x *FlatIndex) Dimension() int {
	return x.dimension
}

// Loaded reports whether Load has completed since construction.
func (x *FlatIndex) Loaded() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.loaded
}

// squaredL2 returns the squared Euclidean distance between two
// vectors of equal length.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
