package main

import (
	"context"
	"fmt"
	"os"
	"time"

	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/uploadoor/pkg/config"
	"github.com/ethpandaops/uploadoor/pkg/history"
	"github.com/ethpandaops/uploadoor/pkg/scan"
	"github.com/ethpandaops/uploadoor/pkg/uploader"
)

var (
	uploadDir         string
	uploadURL         string
	uploadConcurrency int
	uploadBatchSize   int
	uploadTimeoutS    int
	uploadRateLimit   float64
	uploadFailureLog  string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload all files in a directory to an HTTP endpoint",
	Long: `Upload every regular file in a directory to a single HTTP endpoint.

Files are sorted, split into batches, and POSTed with bounded concurrency.
Failed uploads are appended to the failure log and never abort the run;
the process exits 0 as long as setup succeeds.

Intended for localhost endpoints; this is a convention, not enforced.`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVarP(&uploadDir, "dir", "d", "",
		"Directory containing files to upload")
	uploadCmd.Flags().StringVarP(&uploadURL, "url", "u", "",
		"Destination endpoint (e.g. http://localhost:8080/api/v2/sbom)")
	uploadCmd.Flags().IntVarP(&uploadConcurrency, "concurrency", "c",
		config.DefaultConcurrency, "Number of concurrent requests")
	uploadCmd.Flags().IntVarP(&uploadBatchSize, "batch-size", "b",
		config.DefaultBatchSize, "Number of files processed per batch")
	uploadCmd.Flags().IntVarP(&uploadTimeoutS, "timeout-s", "t",
		config.DefaultTimeoutS, "Request timeout in seconds")
	uploadCmd.Flags().Float64Var(&uploadRateLimit, "rate-limit", 0,
		"Requests per second (0 = unlimited)")
	uploadCmd.Flags().StringVar(&uploadFailureLog, "failure-log",
		config.DefaultFailureLog, "Append-only failure log path")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mergeUploadFlags(cmd, cfg)

	if cfg.Upload.Dir == "" {
		return fmt.Errorf("source directory is required (use --dir)")
	}

	if cfg.Upload.URL == "" {
		return fmt.Errorf("destination url is required (use --url)")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	files, err := scan.Files(cfg.Upload.Dir)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"files": len(files),
		"size":  units.HumanSize(float64(scan.TotalSize(files))),
		"dir":   cfg.Upload.Dir,
	}).Info("Scanned directory")

	if len(files) == 0 {
		log.Info("No files to upload. Exiting.")

		return nil
	}

	up, err := uploader.New(log, &uploader.Config{
		URL:            cfg.Upload.URL,
		Concurrency:    cfg.Upload.Concurrency,
		BatchSize:      cfg.Upload.BatchSize,
		Timeout:        cfg.Upload.Timeout(),
		RateLimit:      cfg.Upload.RateLimit,
		FailureLogPath: cfg.Upload.FailureLog,
		Progress:       os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("creating uploader: %w", err)
	}

	started := time.Now()

	summary, err := up.Run(cmd.Context(), files)
	if err != nil {
		return fmt.Errorf("running upload: %w", err)
	}

	log.WithFields(logrus.Fields{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"duration":  summary.Duration.Round(time.Millisecond),
	}).Info("Upload finished")

	if summary.Failed > 0 {
		log.WithField("log", cfg.Upload.FailureLog).
			Warn("Some uploads failed. Check the failure log.")
	}

	recordHistory(cmd.Context(), cfg, started, summary)

	return nil
}

// mergeUploadFlags overlays explicitly set CLI flags onto the config.
func mergeUploadFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("dir") || cfg.Upload.Dir == "" {
		cfg.Upload.Dir = uploadDir
	}

	if cmd.Flags().Changed("url") || cfg.Upload.URL == "" {
		cfg.Upload.URL = uploadURL
	}

	if cmd.Flags().Changed("concurrency") {
		cfg.Upload.Concurrency = uploadConcurrency
	}

	if cmd.Flags().Changed("batch-size") {
		cfg.Upload.BatchSize = uploadBatchSize
	}

	if cmd.Flags().Changed("timeout-s") {
		cfg.Upload.TimeoutS = uploadTimeoutS
	}

	if cmd.Flags().Changed("rate-limit") {
		cfg.Upload.RateLimit = uploadRateLimit
	}

	if cmd.Flags().Changed("failure-log") {
		cfg.Upload.FailureLog = uploadFailureLog
	}
}

// recordHistory persists the run summary when history is enabled.
// Best effort: a store failure is a warning, never a run failure.
func recordHistory(
	ctx context.Context,
	cfg *config.Config,
	started time.Time,
	summary *uploader.Summary,
) {
	if !cfg.History.Enabled {
		return
	}

	store := history.NewStore(log, &cfg.History)

	if err := store.Start(ctx); err != nil {
		log.WithError(err).Warn("Failed to open history store")

		return
	}

	defer func() {
		if err := store.Stop(); err != nil {
			log.WithError(err).Warn("Failed to close history store")
		}
	}()

	run := &history.Run{
		StartedAt:   started,
		DurationMs:  summary.Duration.Milliseconds(),
		Dir:         cfg.Upload.Dir,
		URL:         cfg.Upload.URL,
		Total:       summary.Total,
		Succeeded:   summary.Succeeded,
		Failed:      summary.Failed,
		Concurrency: cfg.Upload.Concurrency,
		BatchSize:   cfg.Upload.BatchSize,
	}

	if err := store.RecordRun(ctx, run); err != nil {
		log.WithError(err).Warn("Failed to record run history")
	}
}

// loadConfig loads the config file when one is given, otherwise defaults.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}
