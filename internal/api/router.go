package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/fishlens/internal/api/handler"
	"github.com/timmy/fishlens/internal/api/middleware"
	"github.com/timmy/fishlens/internal/config"
	"github.com/timmy/fishlens/internal/index"
	"github.com/timmy/fishlens/internal/metrics"
	"github.com/timmy/fishlens/internal/repository"
	"github.com/timmy/fishlens/internal/service"
	"github.com/timmy/fishlens/internal/source"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Store      *repository.Store
	Index      *index.Memory
	Moderation *service.ModerationService
	Search     *service.SearchService
	Catalog    *service.CatalogService
	Ingest     *service.IngestService
	Sources    map[string]source.Source
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry

	// ImagesDir is served under /images when photos live on local disk.
	ImagesDir string
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *config.Config, deps *Dependencies) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Upload.MaxBytes

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.CORS(cfg.Server.CORS))

	healthHandler := handler.NewHealthHandler(deps.Store, deps.Index)
	submissionHandler := handler.NewSubmissionHandler(deps.Moderation, cfg.Upload.MaxBytes)
	searchHandler := handler.NewSearchHandler(deps.Search, cfg.Upload.MaxBytes)
	catalogHandler := handler.NewCatalogHandler(deps.Catalog)

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	if deps.ImagesDir != "" {
		r.Static("/images", deps.ImagesDir)
	}
	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	{
		submissions := v1.Group("/submissions")
		submissions.POST("", submissionHandler.Submit)
		submissions.GET("", submissionHandler.ListByContributor)
		submissions.GET("/pending", submissionHandler.ListPending)
		submissions.GET("/:id", submissionHandler.Get)
		submissions.POST("/:id/approve", submissionHandler.Approve)
		submissions.POST("/:id/reject", submissionHandler.Reject)

		search := v1.Group("/search")
		search.POST("/image", searchHandler.ByImage)
		search.GET("/name", searchHandler.ByName)
		search.GET("/tag", searchHandler.ByTag)
		search.GET("/history", searchHandler.History)

		v1.GET("/fish-types", catalogHandler.ListFishTypes)
		v1.POST("/fish-types", catalogHandler.CreateFishType)
		v1.GET("/catalog/:id", catalogHandler.GetEntry)
		v1.DELETE("/catalog/:id", catalogHandler.RemoveEntry)

		v1.GET("/stats", searchHandler.GetStats)

		if deps.Ingest != nil {
			adminHandler := handler.NewAdminHandler(deps.Ingest, deps.Sources)
			admin := v1.Group("/admin")
			admin.POST("/ingest", adminHandler.TriggerIngest)
			admin.GET("/ingest/status", adminHandler.GetIngestStatus)
		}
	}

	return r
}
