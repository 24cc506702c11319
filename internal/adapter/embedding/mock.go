package embedding

// MockEmbedder produces deterministic vectors from text content
// without any network dependency. Only useful for tests and demos:
// similarity reflects shared leading characters, not meaning.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dimension)
		for j, r := range text {
			if j >= e.dimension {
				break
			}
			vec[j] = float32(r) / 1000.0
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
