package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EmbeddingClient calls an OpenAI-compatible embeddings endpoint.
type EmbeddingClient struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewEmbeddingClient(apiURL, apiKey, model string) (*EmbeddingClient, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("embedding API URL is required")
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	return &EmbeddingClient{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Embed returns the vector for a single text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	request := EmbeddingRequest{
		Model: c.model,
		Input: []string{text},
	}
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var embeddingResponse EmbeddingResponse
	if err := json.Unmarshal(responseBody, &embeddingResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if embeddingResponse.Error != nil {
		return nil, fmt.Errorf("provider error: %s", embeddingResponse.Error.Message)
	}
	if len(embeddingResponse.Data) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return embeddingResponse.Data[0].Embedding, nil
}
