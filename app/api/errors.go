package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		apiError *Error
		valError *ValidationError
		fbError  *fiber.Error
	)
	switch {
	case errors.As(err, &apiError):
		return c.Status(apiError.Code).JSON(apiError)
	case errors.As(err, &valError):
		return c.Status(valError.Status).JSON(valError)
	}

	code := fiber.StatusInternalServerError
	if errors.As(err, &fbError) {
		code = fbError.Code
	}
	slog.Error("[API] request failed", "method", c.Method(), "path", c.Path(), "code", code, "error", err)
	return c.Status(code).JSON(NewError(code, err.Error()))
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) *ValidationError {
	return &ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

// Error implements the Error interface
func (e *Error) Error() string {
	return e.Message
}

func NewError(code int, err string) *Error {
	return &Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() *Error {
	return &Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrNoInput() *Error {
	return &Error{
		Code:    fiber.StatusBadRequest,
		Message: "no text or files to process",
	}
}

func ErrUnsupportedModel(name string) *Error {
	return &Error{
		Code:    fiber.StatusUnprocessableEntity,
		Message: "unsupported model: " + name,
	}
}

func ErrEmbeddingFailed(err error) *Error {
	return &Error{
		Code:    fiber.StatusBadGateway,
		Message: err.Error(),
	}
}
