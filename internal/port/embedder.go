package port

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns one vector per input text.
	Embed(texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension, fixed for the
	// lifetime of one index.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
