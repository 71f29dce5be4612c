// Package pipeline runs one vectorization: join the source texts, chunk,
// embed every chunk, split the result under the payload ceiling and post
// each part to the webhook.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vectorhook/chunker"
	"vectorhook/extract"
	"vectorhook/model"
	"vectorhook/payload"
	"vectorhook/types"
	"vectorhook/webhook"
)

var (
	ErrNothingToProcess = errors.New("nothing to process")
	// ErrNoEmbeddings means every chunk failed to embed and none was kept.
	ErrNoEmbeddings = errors.New("no chunk could be embedded")
)

// FailurePolicy decides what happens to a chunk whose embedding failed.
type FailurePolicy string

const (
	// KeepFailed keeps the record with an empty vector; ids stay contiguous
	// over all chunks.
	KeepFailed FailurePolicy = "keep"
	// DropFailed removes the record and numbers the survivors 1..n.
	DropFailed FailurePolicy = "drop"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case KeepFailed, DropFailed:
		return p, nil
	case "":
		return KeepFailed, nil
	}
	return "", fmt.Errorf("unknown embedding failure policy %q", s)
}

// Embedders resolves a backend identifier to an embedder.
type Embedders interface {
	Get(name string) (model.Embedder, error)
}

// Deliverer posts one JSON document.
type Deliverer interface {
	Deliver(ctx context.Context, endpoint string, body []byte) (webhook.Result, error)
}

type Config struct {
	Chunking        chunker.Options
	MaxPayloadBytes int
	FailurePolicy   FailurePolicy
	// Tokens, when set, totals the tokens of the chunks a run delivers.
	Tokens model.TokenCounter
}

type Pipeline struct {
	cfg       Config
	embedders Embedders
	deliverer Deliverer
	logger    *slog.Logger
}

// New validates cfg; invalid chunking options are rejected here, before any
// text is seen.
func New(cfg Config, embedders Embedders, deliverer Deliverer) (*Pipeline, error) {
	if err := cfg.Chunking.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPayloadBytes <= 0 {
		return nil, payload.ErrInvalidLimit
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = KeepFailed
	}
	if _, err := ParseFailurePolicy(string(cfg.FailurePolicy)); err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:       cfg,
		embedders: embedders,
		deliverer: deliverer,
		logger:    slog.Default(),
	}, nil
}

// ConfigFromTypes picks the pipeline settings out of the process config.
func ConfigFromTypes(cfg types.Config) (Config, error) {
	policy, err := ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Chunking: chunker.Options{
			MinSize: cfg.ChunkMinSize,
			MaxSize: cfg.ChunkMaxSize,
			Overlap: cfg.ChunkOverlap,
		},
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		FailurePolicy:   policy,
		Tokens:          model.NewTokenCounter(cfg.Embedding.OpenAIModel),
	}, nil
}

// NewFromConfig wires the default registry and webhook client.
func NewFromConfig(cfg types.Config) (*Pipeline, error) {
	pcfg, err := ConfigFromTypes(cfg)
	if err != nil {
		return nil, err
	}
	return New(pcfg, model.NewDefaultRegistry(cfg.Embedding), webhook.NewClient(cfg.WebhookTimeout))
}

func (p *Pipeline) Config() Config {
	return p.cfg
}

type Input struct {
	Sources    []extract.Source
	ManualText string
	Model      string
	WebhookURL string
	// MaxPayloadBytes overrides the configured ceiling when positive.
	MaxPayloadBytes int
}

type Report struct {
	RunID      string
	Model      string
	Mode       chunker.Mode
	Chunks     int
	Failed     int
	Tokens     int
	Deliveries []types.DeliveryResult
}

// Delivered counts parts the webhook answered with 200.
func (r *Report) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.OK() {
			n++
		}
	}
	return n
}

func (r *Report) AllDelivered() bool {
	return len(r.Deliveries) > 0 && r.Delivered() == len(r.Deliveries)
}

// Response renders the report as returned to API and CLI callers.
func (r *Report) Response(skipped []types.SkippedFile) *types.VectorizeResponse {
	delivered := r.Delivered()
	msg := "data sent to webhook"
	if !r.AllDelivered() {
		msg = fmt.Sprintf("%d of %d parts delivered", delivered, len(r.Deliveries))
	}
	return &types.VectorizeResponse{
		Message:   msg,
		RunID:     r.RunID,
		Model:     r.Model,
		Chunks:    r.Chunks,
		Failed:    r.Failed,
		Tokens:    r.Tokens,
		Succeeded: delivered,
		Results:   r.Deliveries,
		Skipped:   skipped,
	}
}

// Compose joins manual text and extracted sources into the run's text.
// Paragraph mode is chosen only when all text comes from page or paragraph
// structured files.
func Compose(manual string, sources []extract.Source) (string, chunker.Mode) {
	var (
		parts      []string
		paragraphs = true
	)

	if m := strings.TrimSpace(manual); m != "" {
		parts = append(parts, m)
		paragraphs = false
	}
	for _, s := range sources {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		paragraphs = paragraphs && s.Paragraphed()
	}

	if len(parts) == 0 {
		return "", chunker.Bounded
	}
	if paragraphs {
		return strings.Join(parts, "\n\n"), chunker.Paragraph
	}
	return strings.Join(parts, "\n"), chunker.Bounded
}

// Run executes one vectorization. The returned report lists every delivery
// attempt; delivery failures are reported there, not as an error.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Report, error) {
	text, mode := Compose(in.ManualText, in.Sources)
	if text == "" {
		return nil, ErrNothingToProcess
	}

	embedder, err := p.embedders.Get(in.Model)
	if err != nil {
		return nil, err
	}

	maxBytes := p.cfg.MaxPayloadBytes
	if in.MaxPayloadBytes > 0 {
		maxBytes = in.MaxPayloadBytes
	}

	report := &Report{
		RunID: uuid.NewString(),
		Model: in.Model,
		Mode:  mode,
	}
	log := p.logger.With("run_id", report.RunID, "model", in.Model)
	start := time.Now()
	defer func() {
		log.Info("[PIPELINE] run finished", "took", time.Since(start))
	}()

	chunks, err := chunker.Split(text, mode, p.cfg.Chunking)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNothingToProcess
	}
	log.Info("[PIPELINE] text chunked", "chars", len([]rune(text)), "chunks", len(chunks), "mode", mode.String())

	records, err := p.embed(ctx, log, embedder, chunks, report)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		log.Error("[PIPELINE] nothing to deliver", "failed", report.Failed)
		return nil, fmt.Errorf("%w: %d of %d chunks failed", ErrNoEmbeddings, report.Failed, len(chunks))
	}

	doc := types.ResultDocument{
		Status:       types.StatusSuccess,
		Model:        in.Model,
		OriginalText: text,
		Chunks:       records,
	}
	parts, err := payload.SplitIfLarge(doc, maxBytes)
	if err != nil {
		return nil, err
	}
	log.Info("[PIPELINE] payload split", "parts", len(parts), "max_bytes", maxBytes)

	ctx = webhook.WithRunID(ctx, report.RunID)
	for i, part := range parts {
		report.Deliveries = append(report.Deliveries, p.deliver(ctx, log, in.WebhookURL, i+1, part, maxBytes))
	}

	log.Info("[PIPELINE] delivery summary",
		"delivered", report.Delivered(), "failed", len(report.Deliveries)-report.Delivered(), "tokens", report.Tokens)
	return report, nil
}

func (p *Pipeline) embed(ctx context.Context, log *slog.Logger, embedder model.Embedder, chunks []string, report *Report) ([]types.ChunkRecord, error) {
	records := make([]types.ChunkRecord, 0, len(chunks))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vector, err := embedder.Embed(ctx, chunk)
		if err != nil {
			report.Failed++
			log.Warn("[EMBEDDER] chunk embedding failed", "chunk", i+1, "policy", string(p.cfg.FailurePolicy), "error", err)
			if p.cfg.FailurePolicy == DropFailed {
				continue
			}
			vector = nil
		}
		records = append(records, types.NewChunkRecord(len(records)+1, chunk, vector))
		p.countTokens(log, chunk, report)
	}

	report.Chunks = len(records)
	return records, nil
}

func (p *Pipeline) countTokens(log *slog.Logger, chunk string, report *Report) {
	if p.cfg.Tokens == nil {
		return
	}
	n, err := p.cfg.Tokens.Count(chunk)
	if err != nil {
		log.Debug("[PIPELINE] token count unavailable", "error", err)
		return
	}
	report.Tokens += n
}

func (p *Pipeline) deliver(ctx context.Context, log *slog.Logger, endpoint string, n int, part types.ResultDocument, maxBytes int) types.DeliveryResult {
	result := types.DeliveryResult{
		Part:   n,
		Chunks: len(part.Chunks),
	}

	body, err := payload.Marshal(part)
	if err != nil {
		result.Response = err.Error()
		return result
	}
	result.Bytes = len(body)
	result.Oversized = len(body) > maxBytes

	res, err := p.deliverer.Deliver(ctx, endpoint, body)
	if err != nil {
		log.Error("[WEBHOOK] delivery failed", "part", n, "error", err)
		result.Response = err.Error()
		return result
	}

	code := res.StatusCode
	result.StatusCode = &code
	result.Response = res.Body
	if !res.OK() {
		log.Warn("[WEBHOOK] webhook rejected part", "part", n, "status", code, "body", res.Body)
	}
	return result
}
