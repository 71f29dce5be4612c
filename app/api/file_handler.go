package api

import (
	"io"
	"log/slog"
	"mime/multipart"

	"vectorhook/extract"
	"vectorhook/pipeline"
	"vectorhook/types"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
)

// FileHandler обслуживает форму загрузки: файлы и ручной текст
// векторизуются за один прогон
type FileHandler struct {
	runner    Runner
	extractor *extract.Extractor
	logger    *slog.Logger
}

func NewFileHandler(runner Runner, extractor *extract.Extractor) *FileHandler {
	return &FileHandler{
		runner:    runner,
		extractor: extractor,
		logger:    slog.Default(),
	}
}

func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	var params types.UploadParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		files = form.File["files"]
	}

	var (
		sources []extract.Source
		skipped []types.SkippedFile
	)
	for _, fh := range files {
		src, err := h.readFile(fh)
		if err != nil {
			h.logger.Warn("[UPLOAD] file skipped", "file", fh.Filename, "error", err)
			skipped = append(skipped, types.SkippedFile{File: fh.Filename, Error: err.Error()})
			continue
		}
		h.logger.Info("[UPLOAD] file extracted", "file", fh.Filename, "kind", src.Kind, "size", humanize.IBytes(uint64(fh.Size)))
		sources = append(sources, src)
	}

	report, err := h.runner.Run(c.UserContext(), pipeline.Input{
		Sources:    sources,
		ManualText: params.ManualText,
		Model:      params.Model,
		WebhookURL: params.WebhookURL,
	})
	if err != nil {
		return runError(err, params.Model)
	}

	return c.JSON(report.Response(skipped))
}

func (h *FileHandler) readFile(fh *multipart.FileHeader) (extract.Source, error) {
	file, err := fh.Open()
	if err != nil {
		return extract.Source{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return extract.Source{}, err
	}
	return h.extractor.Extract(fh.Filename, data)
}
