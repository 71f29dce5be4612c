// Package webhook posts JSON payloads to caller-supplied endpoints.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = 60 * time.Second

// RunIDHeader carries the pipeline run id on every delivery.
const RunIDHeader = "X-Run-Id"

// Result is the webhook's answer. StatusCode is 0 when no response arrived.
type Result struct {
	StatusCode int
	Body       string
}

func (r Result) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Client delivers each payload once; failed deliveries are reported, not
// retried.
type Client struct {
	http *resty.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
}

type ctxKey struct{}

// WithRunID attaches a run id that Deliver sends as RunIDHeader.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, runID)
}

// Deliver POSTs body, which must already be JSON, to endpoint. A transport
// failure returns an error and a zero Result; any HTTP answer, including
// non-200, is returned as a Result with a nil error.
func (c *Client) Deliver(ctx context.Context, endpoint string, body []byte) (Result, error) {
	req := c.http.R().
		SetContext(ctx).
		SetBody(body)
	if runID, ok := ctx.Value(ctxKey{}).(string); ok && runID != "" {
		req.SetHeader(RunIDHeader, runID)
	}

	resp, err := req.Post(endpoint)
	if err != nil {
		return Result{}, fmt.Errorf("deliver to %s: %w", endpoint, err)
	}
	return Result{
		StatusCode: resp.StatusCode(),
		Body:       resp.String(),
	}, nil
}
