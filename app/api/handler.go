package api

import (
	"context"
	"errors"

	"vectorhook/model"
	"vectorhook/pipeline"
	"vectorhook/types"

	"github.com/gofiber/fiber/v2"
)

// Runner выполняет один прогон векторизации
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Report, error)
}

type RequestHandler struct {
	runner Runner
}

func NewRequestHandler(runner Runner) *RequestHandler {
	return &RequestHandler{
		runner: runner,
	}
}

func (h *RequestHandler) HandleVectorize(c *fiber.Ctx) error {
	var params types.VectorizeParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	report, err := h.runner.Run(c.UserContext(), pipeline.Input{
		ManualText:      params.InputData,
		Model:           params.Model,
		WebhookURL:      params.WebhookURL,
		MaxPayloadBytes: params.MaxBytes,
	})
	if err != nil {
		return runError(err, params.Model)
	}

	return c.JSON(report.Response(nil))
}

// runError переводит ошибки пайплайна в HTTP ошибки
func runError(err error, modelName string) error {
	switch {
	case errors.Is(err, pipeline.ErrNothingToProcess):
		return ErrNoInput()
	case errors.Is(err, model.ErrUnsupportedBackend):
		return ErrUnsupportedModel(modelName)
	case errors.Is(err, pipeline.ErrNoEmbeddings):
		return ErrEmbeddingFailed(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return err
}
