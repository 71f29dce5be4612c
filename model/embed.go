package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"vectorhook/types"
)

// Идентификаторы бэкендов, которые принимаются от клиентов
const (
	BackendOpenAI              = "openai"
	BackendYandex              = "yandex"
	BackendSentenceTransformer = "sentence_transformer"
)

var ErrUnsupportedBackend = errors.New("unsupported embedding backend")

// Embedder создает эмбеддинг для одного чанка
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Factory создает бэкенд. Вызывается один раз на Registry, при ошибке
// повторяется при следующем запросе
type Factory func() (Embedder, error)

// Registry хранит ленивые общие embedder-ы по идентификатору бэкенда
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]Embedder
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Embedder),
	}
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	delete(r.instances, name)
}

// Get возвращает embedder по имени, создавая его при первом обращении
func (r *Registry) Get(name string) (Embedder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.instances[name]; ok {
		return e, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, name)
	}

	e, err := f()
	if err != nil {
		return nil, fmt.Errorf("init %s embedder: %w", name, err)
	}
	slog.Info("[EMBEDDER] backend initialized", "backend", name)
	r.instances[name] = e
	return e, nil
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDefaultRegistry регистрирует три поддерживаемых бэкенда. Соединения
// не создаются, пока бэкенд не запрошен
func NewDefaultRegistry(cfg types.EmbeddingConfig) *Registry {
	r := NewRegistry()
	r.Register(BackendOpenAI, func() (Embedder, error) {
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:    cfg.OpenAIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.OpenAIModel,
			Timeout:   cfg.Timeout,
			MaxTokens: DefaultOpenAIMaxTokens,
			Counter:   NewTokenCounter(cfg.OpenAIModel),
		})
	})
	r.Register(BackendYandex, func() (Embedder, error) {
		return NewYandexEmbedder(YandexConfig{
			APIKey:   cfg.YandexKey,
			FolderID: cfg.YandexFolderID,
			BaseURL:  cfg.YandexBaseURL,
			Timeout:  cfg.Timeout,
		})
	})
	r.Register(BackendSentenceTransformer, func() (Embedder, error) {
		return NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout), nil
	})
	return r
}
