// Package embedding provides embedding collaborators. The OpenAI
// embedder speaks the /v1/embeddings wire format, which Ollama, Jina
// and most hosted embedding services also accept.
package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"docqa/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "text-embedding-3-small"
	DefaultDimension = 1536
	DefaultBatchSize = 100
	DefaultTimeout   = 60 * time.Second
)

// Config holds configuration for the OpenAI-compatible embedder.
type Config struct {
	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string

	// Model is the embedding model (default: text-embedding-3-small).
	Model string

	// Dimension is the vector size the model produces.
	Dimension int

	// BatchSize is the maximum number of texts per request.
	BatchSize int

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// OpenAIEmbedder generates embeddings via an OpenAI-compatible API.
type OpenAIEmbedder struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	dimension int
	batchSize int
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAIEmbedder creates an embedder from cfg, reading the API key
// from the configured environment variable.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key not found in environment variable %s", domain.ErrConfiguration, cfg.APIKeyEnv)
	}

	return &OpenAIEmbedder{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		apiKey:    apiKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
	}, nil
}

// Embed generates one vector per input text, batching requests.
func (e *OpenAIEmbedder) Embed(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(texts[start:end])
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}
	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(texts []string) ([][]float32, error) {
	payload, err := json.Marshal(embeddingRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding request failed: %v", domain.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read embedding response: %v", domain.ErrCollaboratorUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: embedding API returned status %d: %s", domain.ErrCollaboratorUnavailable, resp.StatusCode, truncate(string(body), 200))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed embedding response (body: %s): %v", domain.ErrCollaboratorUnavailable, truncate(string(body), 200), err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: embedding API error: %s", domain.ErrCollaboratorUnavailable, parsed.Error.Message)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: embedding API returned %d vectors for %d inputs", domain.ErrCollaboratorUnavailable, len(parsed.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding API returned out-of-range index %d", domain.ErrCollaboratorUnavailable, d.Index)
		}
		if len(d.Embedding) != e.dimension {
			return nil, fmt.Errorf("%w: expected %d, got %d from embedding API", domain.ErrDimensionMismatch, e.dimension, len(d.Embedding))
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Dimension returns the embedding vector dimension.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
