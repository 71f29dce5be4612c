package server

import (
	"log/slog"
	"time"

	"vectorhook/app/api"
	"vectorhook/app/middleware"
	"vectorhook/extract"
	"vectorhook/model"
	"vectorhook/pipeline"
	"vectorhook/types"
	"vectorhook/webhook"

	"github.com/gofiber/fiber/v2"
)

// uploadBodyLimit ограничивает размер загрузки, JSON запросы тоже
const uploadBodyLimit = 64 << 20

const shutdownTimeout = 10 * time.Second

type Server struct {
	listenAddr string
	logger     *slog.Logger
	app        *fiber.App
}

func NewServer(cfg types.Config) (*Server, error) {
	pcfg, err := pipeline.ConfigFromTypes(cfg)
	if err != nil {
		return nil, err
	}
	registry := model.NewDefaultRegistry(cfg.Embedding)
	pipe, err := pipeline.New(pcfg, registry, webhook.NewClient(cfg.WebhookTimeout))
	if err != nil {
		return nil, err
	}
	extractor := extract.New(extract.WithPDFCrop(cfg.PDFCropTop, cfg.PDFCropBottom))

	s := &Server{
		listenAddr: cfg.ServerAddr,
		logger:     slog.Default(),
	}
	s.app = newApp(pipe, extractor, registry)
	return s, nil
}

func newApp(pipe *pipeline.Pipeline, extractor *extract.Extractor, backends api.Backends) *fiber.App {
	var (
		app = fiber.New(fiber.Config{
			ErrorHandler: api.ErrorHandler,
			BodyLimit:    uploadBodyLimit,
		})
		checkHandler   = api.NewCheckHandler()
		requestHandler = api.NewRequestHandler(pipe)
		fileHandler    = api.NewFileHandler(pipe, extractor)
		configHandler  = api.NewConfigHandler(pipe.Config(), backends)
	)
	app.Use(middleware.RequestLogger(slog.Default()))

	var (
		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)
	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/vectorize", requestHandler.HandleVectorize)
	apiv1.Post("/upload", fileHandler.HandleUpload)
	apiv1.Get("/config", configHandler.HandleGetConfig)
	apiv1.Get("/models", configHandler.HandleModels)

	return app
}

func (s *Server) Run() error {
	s.logger.Info("server started", "addr", s.listenAddr)
	if err := s.app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return err
	}
	return nil
}

func (s *Server) Stop() {
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		s.logger.Error("error to stop server", "error", err.Error())
	}
	s.logger.Info("server stopped")
}
