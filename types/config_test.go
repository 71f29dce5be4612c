package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	clearEnv(t, "SERVER_ADDR", "MAX_PAYLOAD_BYTES", "CHUNK_MIN_SIZE", "CHUNK_MAX_SIZE",
		"CHUNK_OVERLAP", "EMBED_FAILURE_POLICY", "WEBHOOK_TIMEOUT", "LOADER_MONITORING_TIME",
		"OLLAMA_EMBEDDING_MODEL", "LOADER_MODEL")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.ServerAddr)
	assert.Equal(t, DefaultMaxPayloadBytes, cfg.MaxPayloadBytes)
	assert.Equal(t, 256, cfg.ChunkMinSize)
	assert.Equal(t, 512, cfg.ChunkMaxSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, "keep", cfg.FailurePolicy)
	assert.Equal(t, 60*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 5*time.Second, cfg.Loader.MonitoringTime)
	assert.Equal(t, "all-minilm", cfg.Embedding.OllamaModel)
	assert.Equal(t, "sentence_transformer", cfg.Loader.Model)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("CHUNK_MAX_SIZE", "1024")
	t.Setenv("MAX_PAYLOAD_BYTES", "2048")
	t.Setenv("WEBHOOK_TIMEOUT", "5s")
	t.Setenv("PDF_CROP_TOP", "42.5")
	t.Setenv("EMBED_FAILURE_POLICY", "drop")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.ChunkMaxSize)
	assert.Equal(t, 2048, cfg.MaxPayloadBytes)
	assert.Equal(t, 5*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 42.5, cfg.PDFCropTop)
	assert.Equal(t, "drop", cfg.FailurePolicy)
}

func TestConfigFromEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"CHUNK_OVERLAP":          "fifty",
		"WEBHOOK_TIMEOUT":        "60",
		"PDF_CROP_BOTTOM":        "1,5",
		"LOADER_MONITORING_TIME": "soon",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := ConfigFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoaderConfig_Validate(t *testing.T) {
	cfg := LoaderConfig{
		MonitoringTime: time.Second,
		SourceDir:      "in",
		ArchiveDir:     "archive",
		BadDir:         "bad",
		Model:          "sentence_transformer",
		WebhookURL:     "http://hook/in",
	}
	assert.Empty(t, Validate(&cfg))

	cfg.WebhookURL = ""
	cfg.MonitoringTime = 0
	errs := Validate(&cfg)
	assert.Contains(t, errs, "WebhookURL")
	assert.Contains(t, errs, "MonitoringTime")
}
