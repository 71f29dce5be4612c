package types

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultMaxPayloadBytes is the ceiling for one webhook body (1 MiB).
const DefaultMaxPayloadBytes = 1 << 20

type Config struct {
	ServerAddr      string
	MaxPayloadBytes int
	ChunkMinSize    int
	ChunkMaxSize    int
	ChunkOverlap    int
	FailurePolicy   string
	WebhookTimeout  time.Duration
	PDFCropTop      float64
	PDFCropBottom   float64
	Embedding       EmbeddingConfig
	Loader          LoaderConfig
}

type EmbeddingConfig struct {
	OpenAIKey      string
	OpenAIBaseURL  string
	OpenAIModel    string
	YandexKey      string
	YandexFolderID string
	YandexBaseURL  string
	OllamaURL      string
	OllamaModel    string
	Timeout        time.Duration
}

type LoaderConfig struct {
	MonitoringTime time.Duration `validate:"gt=0"`
	SourceDir      string        `validate:"required"`
	ArchiveDir     string        `validate:"required"`
	BadDir         string        `validate:"required"`
	Model          string        `validate:"required,oneof=openai yandex sentence_transformer"`
	WebhookURL     string        `validate:"required,url"`
}

func (c *LoaderConfig) Validate() map[string]string {
	return validateStruct(c)
}

// ConfigFromEnv reads the configuration from the process environment.
// Unset keys fall back to defaults; malformed numbers are an error.
func ConfigFromEnv() (Config, error) {
	var (
		cfg Config
		p   envParser
	)

	cfg.ServerAddr = envString("SERVER_ADDR", ":8000")
	cfg.MaxPayloadBytes = p.intVar("MAX_PAYLOAD_BYTES", DefaultMaxPayloadBytes)
	cfg.ChunkMinSize = p.intVar("CHUNK_MIN_SIZE", 256)
	cfg.ChunkMaxSize = p.intVar("CHUNK_MAX_SIZE", 512)
	cfg.ChunkOverlap = p.intVar("CHUNK_OVERLAP", 50)
	cfg.FailurePolicy = envString("EMBED_FAILURE_POLICY", "keep")
	cfg.WebhookTimeout = p.durationVar("WEBHOOK_TIMEOUT", 60*time.Second)
	cfg.PDFCropTop = p.floatVar("PDF_CROP_TOP", 0)
	cfg.PDFCropBottom = p.floatVar("PDF_CROP_BOTTOM", 0)

	cfg.Embedding = EmbeddingConfig{
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:    envString("OPENAI_EMBEDDING_MODEL", "text-embedding-ada-002"),
		YandexKey:      os.Getenv("YANDEX_GPT_API_KEY"),
		YandexFolderID: os.Getenv("YANDEX_FOLDER_ID"),
		YandexBaseURL:  envString("YANDEX_BASE_URL", "https://llm.api.cloud.yandex.net"),
		OllamaURL:      envString("OLLAMA_EMBEDDING_URL", "http://localhost:11434/api/embeddings"),
		OllamaModel:    envString("OLLAMA_EMBEDDING_MODEL", "all-minilm"),
		Timeout:        p.durationVar("EMBEDDING_TIMEOUT", 30*time.Second),
	}

	cfg.Loader = LoaderConfig{
		MonitoringTime: p.durationVar("LOADER_MONITORING_TIME", 5*time.Second),
		SourceDir:      envString("LOADER_SOURCE_DIR", "./data/source"),
		ArchiveDir:     envString("LOADER_ARCHIVE_DIR", "./data/archive"),
		BadDir:         envString("LOADER_BAD_DIR", "./data/bad"),
		Model:          envString("LOADER_MODEL", "sentence_transformer"),
		WebhookURL:     os.Getenv("LOADER_WEBHOOK_URL"),
	}

	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// envParser keeps the first parse error so ConfigFromEnv can read every key
// and report once.
type envParser struct {
	err error
}

func (p *envParser) intVar(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *envParser) floatVar(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *envParser) durationVar(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *envParser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}
