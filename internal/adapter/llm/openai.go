// Package llm provides the generation collaborator. The client speaks
// the OpenAI /v1/chat/completions wire format, which Groq, Ollama and
// most hosted inference services also accept.
package llm

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
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.3
	DefaultTimeout     = 120 * time.Second
)

// Config holds configuration for the OpenAI-compatible client.
type Config struct {
	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string

	// Model is the chat model to use (default: gpt-4o-mini).
	Model string

	// MaxTokens caps the generated answer length.
	MaxTokens int

	// Temperature is the sampling temperature. Grounded answering
	// wants it low.
	Temperature float64

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// Client generates text via an OpenAI-compatible chat completion API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewClient creates a chat client from cfg, reading the API key from
// the configured environment variable.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key not found in environment variable %s", domain.ErrConfiguration, cfg.APIKeyEnv)
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      apiKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate generates text based on the prompt.
func (c *Client) Generate(prompt string) (string, error) {
	return c.chatCompletion([]chatMessage{{Role: "user", Content: prompt}})
}

// GenerateWithSystem generates text with a system prompt.
func (c *Client) GenerateWithSystem(systemPrompt, userPrompt string) (string, error) {
	return c.chatCompletion([]chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
}

// ModelName returns the name of the model.
func (c *Client) ModelName() string {
	return c.model
}

func (c *Client) chatCompletion(messages []chatMessage) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: generation request failed: %v", domain.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read generation response: %v", domain.ErrCollaboratorUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: generation API returned status %d: %s", domain.ErrCollaboratorUnavailable, resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: malformed generation response: %v", domain.ErrCollaboratorUnavailable, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: generation API error: %s", domain.ErrCollaboratorUnavailable, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: generation API returned no choices", domain.ErrCollaboratorUnavailable)
	}

	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
