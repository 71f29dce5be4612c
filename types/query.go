package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

// VectorizeParams is the JSON body of POST /api/v1/vectorize.
// InputData is checked by the pipeline so that an empty body reports
// "nothing to process" instead of a validation failure.
type VectorizeParams struct {
	InputData  string `json:"input_data"`
	Model      string `json:"model" validate:"required,oneof=openai yandex sentence_transformer"`
	WebhookURL string `json:"webhook_url" validate:"required,url"`
	MaxBytes   int    `json:"max_bytes,omitempty" validate:"omitempty,gt=0"`
}

// UploadParams are the non-file fields of the multipart upload form.
type UploadParams struct {
	ManualText string `form:"manual_text"`
	Model      string `form:"model" validate:"required,oneof=openai yandex sentence_transformer"`
	WebhookURL string `form:"webhook_url" validate:"required,url"`
}

var validate = validator.New()

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *VectorizeParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *UploadParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(s any) map[string]string {
	if err := validate.Struct(s); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"params": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

// DeliveryResult mirrors one webhook call. StatusCode is nil when the
// request never got a response.
type DeliveryResult struct {
	Part       int    `json:"part"`
	Chunks     int    `json:"chunks"`
	Bytes      int    `json:"bytes"`
	StatusCode *int   `json:"status_code"`
	Response   string `json:"response"`
	Oversized  bool   `json:"oversized,omitempty"`
}

// OK reports whether the webhook answered 200.
func (r DeliveryResult) OK() bool {
	return r.StatusCode != nil && *r.StatusCode == http.StatusOK
}

type VectorizeResponse struct {
	Message   string           `json:"message"`
	RunID     string           `json:"run_id"`
	Model     string           `json:"model"`
	Chunks    int              `json:"chunks"`
	Failed    int              `json:"failed_embeddings"`
	Tokens    int              `json:"tokens,omitempty"`
	Succeeded int              `json:"delivered"`
	Results   []DeliveryResult `json:"results"`
	Skipped   []SkippedFile    `json:"skipped,omitempty"`
}

type SkippedFile struct {
	File  string `json:"file"`
	Error string `json:"error"`
}
