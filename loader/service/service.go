// Package service передает файлы с диска в пайплайн векторизации.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vectorhook/extract"
	"vectorhook/loader/internal"
	"vectorhook/pipeline"
	"vectorhook/types"
)

const shutdownTimeout = 5 * time.Second

// Runner выполняет один прогон векторизации
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Report, error)
}

type Service struct {
	logger    *slog.Logger
	cfg       types.LoaderConfig
	loader    *internal.FileLoader
	extractor *extract.Extractor
	runner    Runner
}

func New(cfg types.LoaderConfig, extractor *extract.Extractor, runner Runner) (*Service, error) {
	loader, err := internal.NewFileLoader(cfg)
	if err != nil {
		return nil, err
	}
	return &Service{
		logger:    slog.Default(),
		cfg:       cfg,
		loader:    loader,
		extractor: extractor,
		runner:    runner,
	}, nil
}

func (s *Service) Stop() {
	s.logger.Info("Loader Service stopped")
}

// Run следит за папкой источника и обрабатывает файлы по одному,
// пока не отменен ctx
func (s *Service) Run(ctx context.Context) error {
	if errs := types.Validate(&s.cfg); len(errs) > 0 {
		return fmt.Errorf("invalid loader configuration: %v", errs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fileChan := make(chan string, 10)
	var (
		wg       sync.WaitGroup
		watchErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		if err := s.loader.WatchFiles(ctx, fileChan); err != nil {
			watchErr = err
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range fileChan {
			if ctx.Err() != nil {
				return
			}
			s.ProcessFile(ctx, path)
		}
	}()

	<-ctx.Done()
	s.logger.Info("[LOADER] shutting down")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		s.logger.Warn("[LOADER] timeout waiting for goroutines to stop")
	}

	s.Stop()
	return watchErr
}

// ProcessFile прогоняет файл через пайплайн. Если все части доставлены,
// файл уходит в архив, иначе в папку bad. При отмене файл остается на месте
func (s *Service) ProcessFile(ctx context.Context, path string) internal.FileState {
	log := s.logger.With("file", path)

	state := internal.FileBad
	report, err := s.processFile(ctx, path)
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("[LOADER] processing cancelled")
		s.loader.Release(path)
		return state
	case err != nil:
		log.Error("[LOADER] processing failed", "error", err)
	case !report.AllDelivered():
		log.Warn("[LOADER] webhook delivery incomplete",
			"run_id", report.RunID, "delivered", report.Delivered(), "parts", len(report.Deliveries))
	default:
		log.Info("[LOADER] file delivered", "run_id", report.RunID, "chunks", report.Chunks, "parts", len(report.Deliveries))
		state = internal.FileArchived
	}

	if _, err := s.loader.MoveToArchive(path, state); err != nil {
		log.Error("[LOADER] error moving file", "error", err)
	}
	return state
}

func (s *Service) processFile(ctx context.Context, path string) (*pipeline.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src, err := s.extractor.Extract(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	return s.runner.Run(ctx, pipeline.Input{
		Sources:    []extract.Source{src},
		Model:      s.cfg.Model,
		WebhookURL: s.cfg.WebhookURL,
	})
}

// Batch разовый прогон по файлам и введенному тексту
type Batch struct {
	Files      []string
	Text       string
	Model      string
	WebhookURL string
}

// RunBatch векторизует все файлы и текст из b за один прогон.
// Нечитаемые файлы пропускаются и попадают в отчет
func RunBatch(ctx context.Context, runner Runner, extractor *extract.Extractor, b Batch) (*pipeline.Report, []types.SkippedFile, error) {
	var (
		sources []extract.Source
		skipped []types.SkippedFile
	)
	for _, path := range b.Files {
		data, err := os.ReadFile(path)
		if err == nil {
			var src extract.Source
			src, err = extractor.Extract(filepath.Base(path), data)
			if err == nil {
				sources = append(sources, src)
				continue
			}
		}
		slog.Warn("[LOADER] file skipped", "file", path, "error", err)
		skipped = append(skipped, types.SkippedFile{File: path, Error: err.Error()})
	}

	report, err := runner.Run(ctx, pipeline.Input{
		Sources:    sources,
		ManualText: b.Text,
		Model:      b.Model,
		WebhookURL: b.WebhookURL,
	})
	return report, skipped, err
}
