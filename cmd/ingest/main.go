package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/timmy/fishlens/internal/config"
	"github.com/timmy/fishlens/internal/index"
	"github.com/timmy/fishlens/internal/logger"
	"github.com/timmy/fishlens/internal/repository"
	"github.com/timmy/fishlens/internal/service"
	"github.com/timmy/fishlens/internal/source/localdir"
	"github.com/timmy/fishlens/internal/storage"
)

type ingestFlags struct {
	configPath    string
	dir           string
	limit         int
	workers       int
	contributorID uint
	autoApprove   bool
	reviewerID    uint
	feedback      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "fishlens-ingest",
		Short: "Import a directory of fish photos as submissions",
		Long: `Walks a directory laid out as <Scientific_name>/<photo> (or with a
manifest.jsonl next to an images/ folder) and files each photo as a pending
submission. With --auto-approve every submission is approved straight away;
a running API server picks the new entries up on its next start.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", os.Getenv("CONFIG_PATH"), "path to config file")
	f.StringVar(&flags.dir, "dir", "", "directory to import (defaults to ingest.dir)")
	f.IntVar(&flags.limit, "limit", 0, "maximum number of photos, 0 for all")
	f.IntVar(&flags.workers, "workers", 0, "worker count (defaults to ingest.workers)")
	f.UintVar(&flags.contributorID, "contributor", 0, "contributor id recorded on each submission")
	f.BoolVar(&flags.autoApprove, "auto-approve", false, "approve every imported submission")
	f.UintVar(&flags.reviewerID, "reviewer", 0, "reviewer id used with --auto-approve")
	f.StringVar(&flags.feedback, "feedback", "bulk import", "moderator feedback used with --auto-approve")
	_ = cmd.MarkFlagRequired("contributor")
	return cmd
}

func runIngest(parent context.Context, flags *ingestFlags) error {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "fishlens-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	dir := flags.dir
	if dir == "" {
		dir = cfg.Ingest.Dir
	}
	if dir == "" {
		return fmt.Errorf("no directory given: pass --dir or set ingest.dir")
	}
	workers := flags.workers
	if workers <= 0 {
		workers = cfg.Ingest.Workers
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	store := repository.NewStore(db)

	objectStorage, err := storage.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	images := storage.NewImageFetcher(objectStorage, cfg.Extractor.FetchTimeout, cfg.Upload.MaxBytes)

	extractor, err := service.NewExtractor(&cfg.Extractor, nil)
	if err != nil {
		return err
	}
	// Approvals still extract a descriptor, which proves the photo is
	// searchable; the index itself lives in the API process.
	moderation := service.NewModerationService(store, objectStorage, images, extractor,
		index.NewMemory(extractor.Dimensions()),
		&service.ModerationConfig{MaxImageBytes: cfg.Upload.MaxBytes}, nil, appLogger)
	ingestService := service.NewIngestService(moderation, images, appLogger, &service.IngestConfig{
		Workers:   workers,
		BatchSize: cfg.Ingest.BatchSize,
	})

	appLogger.WithFields(logger.Fields{
		"dir":          dir,
		"limit":        flags.limit,
		"auto_approve": flags.autoApprove,
	}).Info("Starting ingestion")

	stats, err := ingestService.IngestFromSource(ctx, localdir.NewAdapter(dir), flags.limit, &service.IngestOptions{
		ContributorID: flags.contributorID,
		AutoApprove:   flags.autoApprove,
		ReviewerID:    flags.reviewerID,
		Feedback:      flags.feedback,
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if stats.FailedItems > 0 {
		return fmt.Errorf("ingest finished with %d failed items", stats.FailedItems)
	}
	return nil
}
