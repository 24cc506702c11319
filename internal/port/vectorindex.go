package port

// VectorHit is one nearest-neighbor search result. Lower distance
// means more similar.
type VectorHit struct {
	ID       string
	Distance float64
}

// VectorIndex owns the mapping from chunk identity to embedding vector
// and performs similarity search over the whole corpus.
type VectorIndex interface {
	// Add inserts a vector under a chunk identifier. Rejects
	// dimensionality mismatches and duplicate identifiers.
	Add(id string, vector []float32) error

	// Search returns up to k hits ordered ascending by distance.
	// An empty index yields an empty result, not an error. Equal
	// distances break ties by insertion order.
	Search(query []float32, k int) ([]VectorHit, error)

	// Remove deletes vectors by identifier. Unknown identifiers are
	// ignored so compensation can run after partial writes.
	Remove(ids []string) error

	// Persist writes the full index to durable storage.
	Persist() error

	// Load reads the index from durable storage. A missing store
	// initializes an empty index rather than failing.
	Load() error

	// Count returns the number of vectors currently indexed.
	Count() int

	// Dimension returns the fixed vector dimensionality of the index.
	Dimension() int
}
