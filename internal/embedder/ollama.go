package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Tuning defaults for the Ollama client. requestChunkSize bounds how many
// texts go into one /api/embed call; maxParallel bounds how many such calls
// run at once during a batch.
const (
	defaultModel     = "nomic-embed-text"
	defaultDimension = 768
	requestChunkSize = 16
	maxParallel      = 4
)

// OllamaConfig holds configuration for the Ollama embedder
type OllamaConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434)
	BaseURL string

	// Model is the embedding model to use
	Model string

	// Dimension is the expected embedding dimension; responses with a
	// different dimension are rejected.
	Dimension int
}

// OllamaEmbedder produces embeddings through Ollama's /api/embed endpoint,
// which embeds a whole slice of inputs per request.
type OllamaEmbedder struct {
	endpoint  string
	model     string
	dimension int
	client    *http.Client
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates a new Ollama embedder
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = defaultDimension
	}

	return &OllamaEmbedder{
		endpoint:  baseURL + "/api/embed",
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Embed generates an embedding vector for a single text input
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embedding vectors for multiple text inputs, in input
// order. Inputs are split into fixed-size chunks embedded with bounded
// parallelism.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxParallel)
	errs := make(chan error, 1)

	for start := 0; start < len(texts); start += requestChunkSize {
		end := start + requestChunkSize
		if end > len(texts) {
			end = len(texts)
		}

		wg.Add(1)
		go func(start int, chunk []string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				select {
				case errs <- ctx.Err():
				default:
				}
				return
			}

			vectors, err := e.embed(ctx, chunk)
			if err != nil {
				select {
				case errs <- err:
				default:
				}
				return
			}
			copy(results[start:], vectors)
		}(start, texts[start:end])
	}

	wg.Wait()

	select {
	case err := <-errs:
		return nil, err
	default:
	}
	return results, nil
}

// embed issues one /api/embed call and validates the response shape
func (e *OllamaEmbedder) embed(ctx context.Context, input []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding model returned status %d: %s", resp.StatusCode, detail)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}

	if len(parsed.Embeddings) != len(input) {
		return nil, fmt.Errorf("embedding model returned %d vectors for %d inputs",
			len(parsed.Embeddings), len(input))
	}
	for i, vector := range parsed.Embeddings {
		if len(vector) != e.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d",
				i, len(vector), e.dimension)
		}
	}
	return parsed.Embeddings, nil
}

// Dimension returns the dimensionality of the embedding vectors
func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model being used
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

// Ensure OllamaEmbedder implements Embedder interface
var _ Embedder = (*OllamaEmbedder)(nil)
