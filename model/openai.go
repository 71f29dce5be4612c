package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "text-embedding-ada-002"

	// DefaultOpenAIMaxTokens лимит входа моделей эмбеддингов OpenAI
	DefaultOpenAIMaxTokens = 8191
)

var ErrTooManyTokens = errors.New("input exceeds model token limit")

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// MaxTokens > 0 вместе с Counter отсекает слишком длинные чанки до запроса
	MaxTokens int
	Counter   TokenCounter
}

// OpenAIEmbedder создает эмбеддинги через OpenAI /embeddings
type OpenAIEmbedder struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	counter   TokenCounter
}

type openAIEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	return &OpenAIEmbedder{
		client:    newHTTPClient(cfg.Timeout),
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		counter:   cfg.Counter,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.counter != nil && e.maxTokens > 0 {
		n, err := e.counter.Count(text)
		if err != nil {
			return nil, fmt.Errorf("openai: count tokens: %w", err)
		}
		if n > e.maxTokens {
			return nil, fmt.Errorf("openai: %w: %d > %d", ErrTooManyTokens, n, e.maxTokens)
		}
	}

	var resp openAIEmbeddingResponse
	err := postJSON(ctx, e.client, e.baseURL+"/embeddings",
		map[string]string{"Authorization": "Bearer " + e.apiKey},
		openAIEmbeddingRequest{Model: e.model, Input: text},
		&resp,
	)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("openai: no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}
