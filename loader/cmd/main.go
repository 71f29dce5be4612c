package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vectorhook/extract"
	"vectorhook/loader/service"
	"vectorhook/pipeline"
	"vectorhook/types"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "loader",
	Short:         "Vectorize files and send the result to a webhook",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the source directory and vectorize new files",
	Long: `Watches LOADER_SOURCE_DIR. Each file that stays unchanged for
LOADER_MONITORING_TIME is vectorized with LOADER_MODEL and delivered to
LOADER_WEBHOOK_URL, then moved to the archive or bad directory.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var runCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Vectorize files and text once",
	RunE:  runOnce,
}

var (
	runText    string
	runModel   string
	runWebhook string
)

func init() {
	runCmd.Flags().StringVarP(&runText, "text", "t", "", "Text placed before the file contents")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Embedding backend (default LOADER_MODEL)")
	runCmd.Flags().StringVarP(&runWebhook, "webhook", "w", "", "Webhook URL (default LOADER_WEBHOOK_URL)")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	mustLoadEnvVariables()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func setup() (types.Config, *pipeline.Pipeline, *extract.Extractor, error) {
	cfg, err := types.ConfigFromEnv()
	if err != nil {
		return cfg, nil, nil, err
	}
	pipe, err := pipeline.NewFromConfig(cfg)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, pipe, extract.New(extract.WithPDFCrop(cfg.PDFCropTop, cfg.PDFCropBottom)), nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, pipe, extractor, err := setup()
	if err != nil {
		return err
	}
	svc, err := service.New(cfg.Loader, extractor, pipe)
	if err != nil {
		return err
	}
	return svc.Run(cmd.Context())
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, pipe, extractor, err := setup()
	if err != nil {
		return err
	}

	batch := service.Batch{
		Files:      args,
		Text:       runText,
		Model:      cfg.Loader.Model,
		WebhookURL: cfg.Loader.WebhookURL,
	}
	if runModel != "" {
		batch.Model = runModel
	}
	if runWebhook != "" {
		batch.WebhookURL = runWebhook
	}
	if batch.WebhookURL == "" {
		return errors.New("webhook URL is required: set --webhook or LOADER_WEBHOOK_URL")
	}

	report, skipped, err := service.RunBatch(cmd.Context(), pipe, extractor, batch)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report.Response(skipped)); err != nil {
		return err
	}
	if !report.AllDelivered() {
		return fmt.Errorf("%d of %d parts delivered", report.Delivered(), len(report.Deliveries))
	}
	return nil
}

func mustLoadEnvVariables() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal("Error loading .env file: ", err)
	}
}
