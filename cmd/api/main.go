package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/timmy/fishlens/internal/api"
	"github.com/timmy/fishlens/internal/config"
	"github.com/timmy/fishlens/internal/index"
	"github.com/timmy/fishlens/internal/logger"
	"github.com/timmy/fishlens/internal/metrics"
	"github.com/timmy/fishlens/internal/repository"
	"github.com/timmy/fishlens/internal/service"
	"github.com/timmy/fishlens/internal/source"
	"github.com/timmy/fishlens/internal/source/localdir"
	"github.com/timmy/fishlens/internal/storage"
)

func main() {
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	store := repository.NewStore(db)

	objectStorage, err := storage.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	images := storage.NewImageFetcher(objectStorage, cfg.Extractor.FetchTimeout, cfg.Upload.MaxBytes)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics, err := metrics.New(registry)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to register metrics")
	}

	extractor, err := service.NewExtractor(&cfg.Extractor, appMetrics)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize extractor")
	}
	appLogger.WithFields(logger.Fields{
		"provider":   cfg.Extractor.Provider,
		"model":      extractor.Model(),
		"dimensions": extractor.Dimensions(),
	}).Info("Descriptor extractor ready")

	vectorIndex := index.NewMemory(extractor.Dimensions())
	auditLog := service.NewAuditLog(store.Searches, cfg.Audit.BufferSize, appMetrics, appLogger)

	moderationService := service.NewModerationService(store, objectStorage, images, extractor, vectorIndex,
		&service.ModerationConfig{MaxImageBytes: cfg.Upload.MaxBytes}, appMetrics, appLogger)
	searchService := service.NewSearchService(store, extractor, vectorIndex, images, auditLog,
		&service.SearchConfig{
			DefaultCount:     cfg.Search.DefaultCount,
			MaxCount:         cfg.Search.MaxCount,
			ServeBeforeReady: cfg.Index.ServeBeforeReady,
		}, appMetrics, appLogger)
	catalogService := service.NewCatalogService(store, vectorIndex, images, appMetrics, appLogger)
	ingestService := service.NewIngestService(moderationService, images, appLogger, &service.IngestConfig{
		Workers:   cfg.Ingest.Workers,
		BatchSize: cfg.Ingest.BatchSize,
	})

	sources := map[string]source.Source{}
	if cfg.Ingest.Dir != "" {
		sources["localdir"] = localdir.NewAdapter(cfg.Ingest.Dir)
	}

	loader := service.NewIndexLoader(store, images, extractor, vectorIndex, cfg.Index.LoadWorkers, appMetrics, appLogger)
	populate := func() error {
		stats, err := loader.Populate(ctx)
		if err != nil {
			return err
		}
		if stats.Skipped > 0 {
			appLogger.WithField("skipped", stats.Skipped).Warn("Some catalog entries are not searchable by image")
		}
		return nil
	}
	if cfg.Index.ServeBeforeReady {
		go func() {
			if err := populate(); err != nil && !errors.Is(err, context.Canceled) {
				appLogger.WithError(err).Error("Index population failed")
			}
		}()
	} else if err := populate(); err != nil {
		appLogger.WithError(err).Fatal("Index population failed")
	}

	deps := &api.Dependencies{
		Store:      store,
		Index:      vectorIndex,
		Moderation: moderationService,
		Search:     searchService,
		Catalog:    catalogService,
		Ingest:     ingestService,
		Sources:    sources,
		Metrics:    appMetrics,
		Registry:   registry,
	}
	if local, ok := objectStorage.(*storage.LocalStorage); ok {
		deps.ImagesDir = local.Root()
	}
	router := api.SetupRouter(cfg, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	// Pending audit records are flushed after the last request finished.
	if err := auditLog.Close(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("Audit log did not drain")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	appLogger.Info("Server exited")
}
