package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/timmy/fishlens/internal/domain"
	"github.com/timmy/fishlens/internal/index"
	"github.com/timmy/fishlens/internal/logger"
	"github.com/timmy/fishlens/internal/metrics"
	"github.com/timmy/fishlens/internal/repository"
	"golang.org/x/sync/errgroup"
)

// ImageSource resolves image references to bytes and display URLs.
// storage.ImageFetcher is the production implementation.
type ImageSource interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
	URL(ref string) string
}

// LoadStats summarises one index population run.
type LoadStats struct {
	Total    int           `json:"total"`
	Indexed  int64         `json:"indexed"`
	Skipped  int64         `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// IndexLoader rebuilds the vector index from the durable catalog.
type IndexLoader struct {
	store     *repository.Store
	images    ImageSource
	extractor Extractor
	index     *index.Memory
	workers   int
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewIndexLoader creates a loader running at most workers extractions at once.
func NewIndexLoader(store *repository.Store, images ImageSource, extractor Extractor, idx *index.Memory, workers int, m *metrics.Metrics, log *logger.Logger) *IndexLoader {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &IndexLoader{
		store:     store,
		images:    images,
		extractor: extractor,
		index:     idx,
		workers:   workers,
		metrics:   m,
		logger:    log.WithField(logger.FieldComponent, "index_loader"),
	}
}

// Populate extracts a descriptor for every catalog entry and inserts it.
// Entries whose image cannot be fetched or extracted are logged and skipped.
// On success the index is marked ready; if ctx is cancelled the context
// error is returned and the index stays not ready.
func (l *IndexLoader) Populate(ctx context.Context) (*LoadStats, error) {
	start := time.Now()
	entries, err := l.store.Catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}

	stats := &LoadStats{Total: len(entries)}
	l.logger.WithFields(logger.Fields{
		logger.FieldCount: len(entries),
		"workers":         l.workers,
	}).Info("Populating vector index")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		entry := entry
		g.Go(func() error {
			if err := l.indexEntry(gctx, entry); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				atomic.AddInt64(&stats.Skipped, 1)
				l.logger.WithField(logger.FieldCatalogID, entry.ID).WithError(err).Warn("Skipping catalog entry")
				return nil
			}
			atomic.AddInt64(&stats.Indexed, 1)
			return nil
		})
	}
	waitErr := g.Wait()
	stats.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if waitErr != nil {
		return stats, waitErr
	}

	l.index.MarkReady()
	l.metrics.SetIndexSize(l.index.Len())
	l.metrics.ObserveIndexLoad(int(stats.Skipped), stats.Duration)
	l.logger.WithFields(logger.Fields{
		"total":                stats.Total,
		"indexed":              stats.Indexed,
		"skipped":              stats.Skipped,
		logger.FieldDurationMs: stats.Duration.Milliseconds(),
	}).Info("Vector index ready")
	return stats, nil
}

func (l *IndexLoader) indexEntry(ctx context.Context, entry domain.CatalogEntry) error {
	data, err := l.images.Fetch(ctx, entry.ImageReference)
	if err != nil {
		return fmt.Errorf("fetch image: %w", err)
	}
	vec, err := l.extractor.Extract(ctx, data)
	if err != nil {
		return err
	}
	return l.index.Insert(entry.ID, vec)
}
