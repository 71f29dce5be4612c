package model

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"
)

// OllamaEmbedder реализует локальный sentence_transformer бэкенд
// (по умолчанию all-MiniLM) через Ollama
type OllamaEmbedder struct {
	client *http.Client
	apiURL string
	model  string
}

type OllamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type OllamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewOllamaEmbedder(apiURL, model string, timeout time.Duration) *OllamaEmbedder {
	return &OllamaEmbedder{
		client: newHTTPClient(timeout),
		apiURL: apiURL,
		model:  model,
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	req := OllamaEmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	}

	var resp OllamaEmbeddingResponse
	if err := postJSON(ctx, e.client, e.apiURL, nil, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("ollama: empty embedding")
	}

	// MiniLM отдает векторы единичной длины, сохраняем это
	return normalize64(resp.Embedding), nil
}

// normalize64 нормализует вектор на месте
func normalize64(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}

	for i, x := range vec {
		vec[i] = x / norm
	}
	return vec
}
