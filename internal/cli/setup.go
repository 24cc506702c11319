package cli

import (
	"fmt"
	"time"

	"docqa/config"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/index"
	"docqa/internal/adapter/llm"
	"docqa/internal/adapter/store"
	"docqa/internal/port"
)

// openStore opens the metadata database under dir, creating the data
// directory if needed.
func openStore(dir string) (*store.BoltStore, error) {
	if err := config.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.NewBoltStore(config.MetadataDBPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	return st, nil
}

// openIndex opens the vector index under dir and loads its snapshot.
func openIndex(dir string, dimension int) (*index.FlatIndex, error) {
	idx, err := index.NewFlatIndex(config.VectorSnapshotPath(dir), dimension)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(); err != nil {
		return nil, fmt.Errorf("failed to load vector index: %w", err)
	}
	return idx, nil
}

// newEmbedder creates the configured embedding collaborator.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(embedding.Config{
			BaseURL:   cfg.Embedding.BaseURL,
			APIKeyEnv: cfg.Embedding.APIKeyEnv,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			BatchSize: cfg.Embedding.BatchSize,
			Timeout:   time.Duration(cfg.Embedding.TimeoutSecs) * time.Second,
		})
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

// newLLM creates the configured generation collaborator.
func newLLM(cfg *config.Config) (port.LLM, error) {
	return llm.NewClient(llm.Config{
		BaseURL:     cfg.Generation.BaseURL,
		APIKeyEnv:   cfg.Generation.APIKeyEnv,
		Model:       cfg.Generation.Model,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
		Timeout:     time.Duration(cfg.Generation.TimeoutSecs) * time.Second,
	})
}

// indexDimension returns the dimensionality the existing index was
// built with, from the stored manifest. Commands that never embed
// (status, remove) use this so a config change cannot make them
// misread a healthy snapshot; only ingest and ask gate on the full
// manifest match.
func indexDimension(st *store.BoltStore, cfg *config.Config) (int, error) {
	m, err := st.GetManifest()
	if err != nil {
		return 0, fmt.Errorf("failed to read index manifest: %w", err)
	}
	if m != nil {
		return m.Dimension, nil
	}
	return cfg.Embedding.Dimension, nil
}

// checkManifest verifies the stored index manifest against the active
// configuration, writing one on first use. A mismatch means existing
// vectors are unusable with the new parameters.
func checkManifest(st *store.BoltStore, embedder port.Embedder, cfg *config.Config) error {
	want := store.Manifest{
		EmbeddingModel: embedder.ModelName(),
		Dimension:      embedder.Dimension(),
		ChunkSize:      cfg.Chunking.Size,
		ChunkOverlap:   cfg.Chunking.Overlap,
	}

	have, err := st.GetManifest()
	if err != nil {
		return fmt.Errorf("failed to read index manifest: %w", err)
	}
	if have == nil {
		return st.PutManifest(want)
	}
	if reason := have.Mismatch(want); reason != "" {
		return fmt.Errorf("index rebuild required: %s (run 'docqa ingest --rebuild')", reason)
	}
	return nil
}
