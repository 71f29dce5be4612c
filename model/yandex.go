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
	DefaultYandexBaseURL = "https://llm.api.cloud.yandex.net"
	yandexEmbeddingPath  = "/foundationModels/v1/textEmbedding"
)

type YandexConfig struct {
	APIKey   string
	FolderID string
	BaseURL  string
	// Model имя модели эмбеддингов внутри каталога
	Model   string
	Timeout time.Duration
}

// YandexEmbedder создает эмбеддинги через Yandex Foundation Models
type YandexEmbedder struct {
	client   *http.Client
	url      string
	apiKey   string
	folderID string
	modelURI string
}

type yandexEmbeddingRequest struct {
	ModelURI string `json:"modelUri"`
	Text     string `json:"text"`
}

type yandexEmbeddingResponse struct {
	Embedding    []float64 `json:"embedding"`
	NumTokens    string    `json:"numTokens"`
	ModelVersion string    `json:"modelVersion"`
}

func NewYandexEmbedder(cfg YandexConfig) (*YandexEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("yandex: API key is required")
	}
	if cfg.FolderID == "" {
		return nil, errors.New("yandex: folder id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultYandexBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "text-search-doc"
	}

	return &YandexEmbedder{
		client:   newHTTPClient(cfg.Timeout),
		url:      strings.TrimSuffix(cfg.BaseURL, "/") + yandexEmbeddingPath,
		apiKey:   cfg.APIKey,
		folderID: cfg.FolderID,
		modelURI: fmt.Sprintf("emb://%s/%s/latest", cfg.FolderID, cfg.Model),
	}, nil
}

func (e *YandexEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var resp yandexEmbeddingResponse
	err := postJSON(ctx, e.client, e.url,
		map[string]string{
			"Authorization": "Api-Key " + e.apiKey,
			"x-folder-id":   e.folderID,
		},
		yandexEmbeddingRequest{ModelURI: e.modelURI, Text: text},
		&resp,
	)
	if err != nil {
		return nil, fmt.Errorf("yandex: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("yandex: no embedding returned")
	}
	return resp.Embedding, nil
}
