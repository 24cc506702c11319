package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"docqa/internal/domain"
)

// Config holds all configuration for the document QA tool.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Ingest     IngestConfig     `yaml:"ingest"`
}

// ChunkingConfig holds chunker configuration.
type ChunkingConfig struct {
	Size    int `yaml:"size"`    // window size in characters
	Overlap int `yaml:"overlap"` // characters shared between adjacent chunks
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // "openai" or "mock"
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"` // Environment variable for API key
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GenerationConfig holds answer-generation model configuration.
type GenerationConfig struct {
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// RetrieveConfig holds retrieval and confidence configuration.
type RetrieveConfig struct {
	TopK            int     `yaml:"top_k"`
	MaxContextChars int     `yaml:"max_context_chars"`
	HighThreshold   float64 `yaml:"high_threshold"`   // best distance below this => high confidence
	MediumThreshold float64 `yaml:"medium_threshold"` // below this => medium, otherwise low
	CacheSize       int     `yaml:"cache_size"`
	CacheTTLSecs    int     `yaml:"cache_ttl_secs"`
}

// IngestConfig holds document ingestion configuration.
type IngestConfig struct {
	Includes      []string `yaml:"includes"`
	Excludes      []string `yaml:"excludes"`
	MaxFileSize   int64    `yaml:"max_file_size"`
	MinTextLength int      `yaml:"min_text_length"` // cleaned text shorter than this is rejected
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			Size:    500,
			Overlap: 50,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "text-embedding-3-small",
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Dimension:   1536,
			BatchSize:   100,
			TimeoutSecs: 60,
		},
		Generation: GenerationConfig{
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   500,
			Temperature: 0.3,
			TimeoutSecs: 120,
		},
		Retrieve: RetrieveConfig{
			TopK:            5,
			MaxContextChars: 8000,
			HighThreshold:   0.8,
			MediumThreshold: 1.3,
			CacheSize:       100,
			CacheTTLSecs:    300,
		},
		Ingest: IngestConfig{
			Includes:      []string{"**/*.txt", "**/*.md"},
			Excludes:      []string{"**/node_modules/**", "**/.git/**", "**/.docqa/**"},
			MaxFileSize:   10 * 1024 * 1024,
			MinTextLength: 20,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrConfiguration, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docqa.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docqa", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("%w: chunking.size must be positive, got %d", domain.ErrConfiguration, c.Chunking.Size)
	}
	if c.Chunking.Overlap <= 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: chunking.overlap must be in (0, %d), got %d", domain.ErrConfiguration, c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("%w: embedding.dimension must be positive, got %d", domain.ErrConfiguration, c.Embedding.Dimension)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("%w: retrieve.top_k must be positive, got %d", domain.ErrConfiguration, c.Retrieve.TopK)
	}
	if c.Retrieve.HighThreshold <= 0 || c.Retrieve.MediumThreshold <= c.Retrieve.HighThreshold {
		return fmt.Errorf("%w: retrieve thresholds must satisfy 0 < high < medium, got high=%g medium=%g",
			domain.ErrConfiguration, c.Retrieve.HighThreshold, c.Retrieve.MediumThreshold)
	}
	return nil
}

// MetadataDBPath returns the path to the metadata database.
func MetadataDBPath(dir string) string {
	return filepath.Join(dir, ".docqa", "metadata.db")
}

// VectorSnapshotPath returns the path to the vector index snapshot.
func VectorSnapshotPath(dir string) string {
	return filepath.Join(dir, ".docqa", "vectors.json")
}

// EnsureDataDir ensures the .docqa directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".docqa"), 0755)
}
