package service

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vectorhook/chunker"
	"vectorhook/extract"
	"vectorhook/loader/internal"
	"vectorhook/model"
	"vectorhook/pipeline"
	"vectorhook/types"
	"vectorhook/webhook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	inputs []pipeline.Input
	status int
	err    error
}

func (f *fakeRunner) Run(_ context.Context, in pipeline.Input) (*pipeline.Report, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &pipeline.Report{
		RunID:      "run",
		Model:      in.Model,
		Chunks:     1,
		Deliveries: []types.DeliveryResult{{Part: 1, StatusCode: &status}},
	}, nil
}

func newTestService(t *testing.T, runner Runner) *Service {
	t.Helper()
	root := t.TempDir()
	svc, err := New(types.LoaderConfig{
		MonitoringTime: 20 * time.Millisecond,
		SourceDir:      filepath.Join(root, "source"),
		ArchiveDir:     filepath.Join(root, "archive"),
		BadDir:         filepath.Join(root, "bad"),
		Model:          "sentence_transformer",
		WebhookURL:     "http://hook/in",
	}, extract.New(), runner)
	require.NoError(t, err)
	return svc
}

func drop(t *testing.T, svc *Service, name, content string) string {
	t.Helper()
	path := filepath.Join(svc.cfg.SourceDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func dated(dir, name string) string {
	return filepath.Join(dir, time.Now().Format("2006-01-02"), name)
}

func TestProcessFile_Delivered(t *testing.T) {
	runner := &fakeRunner{}
	svc := newTestService(t, runner)
	path := drop(t, svc, "notes.txt", "some notes")

	assert.Equal(t, internal.FileArchived, svc.ProcessFile(context.Background(), path))

	require.Len(t, runner.inputs, 1)
	in := runner.inputs[0]
	assert.Equal(t, "sentence_transformer", in.Model)
	assert.Equal(t, "http://hook/in", in.WebhookURL)
	require.Len(t, in.Sources, 1)
	assert.Equal(t, "some notes", in.Sources[0].Text)
	assert.FileExists(t, dated(svc.cfg.ArchiveDir, "notes.txt"))
	assert.NoFileExists(t, path)
}

func TestProcessFile_Failures(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		runner  *fakeRunner
		runs    int
	}{
		{name: "webhook rejected", file: "a.txt", content: "text", runner: &fakeRunner{status: http.StatusBadGateway}, runs: 1},
		{name: "pipeline error", file: "b.txt", content: "text", runner: &fakeRunner{err: pipeline.ErrNothingToProcess}, runs: 1},
		{name: "unsupported file", file: "c.png", content: "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", runner: &fakeRunner{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.runner)
			path := drop(t, svc, tt.file, tt.content)

			assert.Equal(t, internal.FileBad, svc.ProcessFile(context.Background(), path))
			assert.FileExists(t, dated(svc.cfg.BadDir, tt.file))
			assert.Len(t, tt.runner.inputs, tt.runs)
		})
	}
}

type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("backend down")
}

type countingDeliverer struct{ calls int }

func (d *countingDeliverer) Deliver(context.Context, string, []byte) (webhook.Result, error) {
	d.calls++
	return webhook.Result{StatusCode: http.StatusOK}, nil
}

func TestProcessFile_NoEmbeddingsGoesToBad(t *testing.T) {
	registry := model.NewRegistry()
	registry.Register(model.BackendSentenceTransformer, func() (model.Embedder, error) { return downEmbedder{}, nil })
	d := &countingDeliverer{}
	pipe, err := pipeline.New(pipeline.Config{
		Chunking:        chunker.DefaultOptions(),
		MaxPayloadBytes: types.DefaultMaxPayloadBytes,
		FailurePolicy:   pipeline.DropFailed,
	}, registry, d)
	require.NoError(t, err)

	svc := newTestService(t, pipe)
	path := drop(t, svc, "notes.txt", "some notes")

	assert.Equal(t, internal.FileBad, svc.ProcessFile(context.Background(), path))
	assert.FileExists(t, dated(svc.cfg.BadDir, "notes.txt"))
	assert.NoFileExists(t, dated(svc.cfg.ArchiveDir, "notes.txt"))
	assert.Zero(t, d.calls)
}

func TestProcessFile_CancelledLeavesFile(t *testing.T) {
	svc := newTestService(t, &fakeRunner{err: context.Canceled})
	path := drop(t, svc, "a.txt", "content")

	svc.ProcessFile(context.Background(), path)
	assert.FileExists(t, path)
}

func TestRun_ProcessesDroppedFiles(t *testing.T) {
	runner := &fakeRunner{}
	svc := newTestService(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	drop(t, svc, "dropped.txt", "dropped while running")
	assert.Eventually(t, func() bool {
		_, err := os.Stat(dated(svc.cfg.ArchiveDir, "dropped.txt"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	svc := newTestService(t, &fakeRunner{})
	svc.cfg.WebhookURL = ""
	assert.Error(t, svc.Run(context.Background()))
}

func TestRunBatch(t *testing.T) {
	runner := &fakeRunner{}
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("file text"), 0644))

	report, skipped, err := RunBatch(context.Background(), runner, extract.New(), Batch{
		Files:      []string{good, filepath.Join(dir, "missing.txt")},
		Text:       "typed",
		Model:      "openai",
		WebhookURL: "http://hook",
	})
	require.NoError(t, err)
	assert.True(t, report.AllDelivered())
	require.Len(t, skipped, 1)
	assert.Equal(t, filepath.Join(dir, "missing.txt"), skipped[0].File)

	require.Len(t, runner.inputs, 1)
	assert.Equal(t, "typed", runner.inputs[0].ManualText)
	require.Len(t, runner.inputs[0].Sources, 1)
	assert.Equal(t, "file text", runner.inputs[0].Sources[0].Text)
}

func TestRunBatch_Error(t *testing.T) {
	_, _, err := RunBatch(context.Background(), &fakeRunner{err: pipeline.ErrNothingToProcess}, extract.New(), Batch{})
	assert.True(t, errors.Is(err, pipeline.ErrNothingToProcess))
}
