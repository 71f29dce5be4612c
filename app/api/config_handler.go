package api

import (
	"vectorhook/pipeline"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
)

// Backends список бэкендов эмбеддингов, доступных серверу
type Backends interface {
	Names() []string
}

// ConfigHandler отдает текущие настройки, только чтение
type ConfigHandler struct {
	cfg      pipeline.Config
	backends Backends
}

func NewConfigHandler(cfg pipeline.Config, backends Backends) *ConfigHandler {
	return &ConfigHandler{
		cfg:      cfg,
		backends: backends,
	}
}

type configResponse struct {
	ChunkMinSize    int      `json:"chunk_min_size"`
	ChunkMaxSize    int      `json:"chunk_max_size"`
	ChunkOverlap    int      `json:"chunk_overlap"`
	MaxPayloadBytes int      `json:"max_payload_bytes"`
	MaxPayload      string   `json:"max_payload"`
	FailurePolicy   string   `json:"failure_policy"`
	Models          []string `json:"models"`
}

func (h *ConfigHandler) HandleGetConfig(c *fiber.Ctx) error {
	return c.JSON(configResponse{
		ChunkMinSize:    h.cfg.Chunking.MinSize,
		ChunkMaxSize:    h.cfg.Chunking.MaxSize,
		ChunkOverlap:    h.cfg.Chunking.Overlap,
		MaxPayloadBytes: h.cfg.MaxPayloadBytes,
		MaxPayload:      humanize.IBytes(uint64(h.cfg.MaxPayloadBytes)),
		FailurePolicy:   string(h.cfg.FailurePolicy),
		Models:          h.backends.Names(),
	})
}

func (h *ConfigHandler) HandleModels(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"models": h.backends.Names()})
}
