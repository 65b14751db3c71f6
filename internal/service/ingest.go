package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/fishlens/internal/domain"
	"github.com/timmy/fishlens/internal/logger"
	"github.com/timmy/fishlens/internal/source"
)

// IngestService files photos from a bulk source as submissions, optionally
// approving each one straight away.
type IngestService struct {
	moderation *ModerationService
	images     ImageSource
	logger     *logger.Logger
	workers    int
	batchSize  int
}

// IngestConfig holds configuration for the ingest service
type IngestConfig struct {
	Workers   int
	BatchSize int
}

// NewIngestService creates a new ingest service
func NewIngestService(moderation *ModerationService, images ImageSource, log *logger.Logger, cfg *IngestConfig) *IngestService {
	if log == nil {
		log = logger.GetDefault()
	}
	workers, batch := cfg.Workers, cfg.BatchSize
	if workers <= 0 {
		workers = 1
	}
	if batch <= 0 {
		batch = 50
	}
	return &IngestService{
		moderation: moderation,
		images:     images,
		logger:     log.WithField(logger.FieldComponent, "ingest"),
		workers:    workers,
		batchSize:  batch,
	}
}

// IngestStats holds statistics for an ingestion run
type IngestStats struct {
	TotalItems     int64     `json:"total"`
	ProcessedItems int64     `json:"processed"`
	ApprovedItems  int64     `json:"approved"`
	SkippedItems   int64     `json:"skipped"`
	FailedItems    int64     `json:"failed"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
}

// IngestOptions holds options for ingestion
type IngestOptions struct {
	ContributorID uint
	AutoApprove   bool
	ReviewerID    uint
	Feedback      string
}

type processResult struct {
	sourceID string
	approved bool
	skipped  bool
	err      error
}

// IngestFromSource reads up to limit items from src and submits them with
// a fixed pool of workers. Items whose species is not in the taxonomy are
// skipped.
func (s *IngestService) IngestFromSource(ctx context.Context, src source.Source, limit int, opts *IngestOptions) (*IngestStats, error) {
	if opts == nil || opts.ContributorID == 0 {
		return nil, fmt.Errorf("%w: contributor id is required", domain.ErrInvalidInput)
	}
	if opts.AutoApprove && opts.ReviewerID == 0 {
		return nil, fmt.Errorf("%w: reviewer id is required to auto-approve", domain.ErrInvalidInput)
	}

	stats := &IngestStats{StartTime: time.Now()}
	s.logger.WithFields(logger.Fields{
		"source":       src.GetSourceID(),
		"limit":        limit,
		"auto_approve": opts.AutoApprove,
	}).Info("Starting ingestion")

	itemsChan := make(chan source.PhotoItem, s.workers*2)
	resultsChan := make(chan processResult, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, itemsChan, resultsChan, opts)
		}()
	}

	done := make(chan struct{})
	go func() {
		for result := range resultsChan {
			atomic.AddInt64(&stats.ProcessedItems, 1)
			switch {
			case result.skipped:
				atomic.AddInt64(&stats.SkippedItems, 1)
			case result.err != nil:
				atomic.AddInt64(&stats.FailedItems, 1)
				s.logger.WithField("source_id", result.sourceID).WithError(result.err).Error("Failed to process item")
			case result.approved:
				atomic.AddInt64(&stats.ApprovedItems, 1)
			}
		}
		close(done)
	}()

	var fetchErr error
	cursor := ""
	fetched := 0
feed:
	for ctx.Err() == nil {
		batchLimit := s.batchSize
		if limit > 0 {
			remaining := limit - fetched
			if remaining <= 0 {
				break
			}
			if batchLimit > remaining {
				batchLimit = remaining
			}
		}

		items, next, err := src.FetchBatch(ctx, cursor, batchLimit)
		if err != nil {
			fetchErr = fmt.Errorf("fetch batch: %w", err)
			break
		}
		if len(items) == 0 {
			break
		}
		atomic.AddInt64(&stats.TotalItems, int64(len(items)))
		fetched += len(items)

		for _, item := range items {
			select {
			case itemsChan <- item:
			case <-ctx.Done():
				break feed
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}

	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done

	stats.EndTime = time.Now()
	s.logger.WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"approved":  stats.ApprovedItems,
		"skipped":   stats.SkippedItems,
		"failed":    stats.FailedItems,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Ingestion completed")

	if fetchErr != nil {
		return stats, fetchErr
	}
	return stats, ctx.Err()
}

func (s *IngestService) worker(ctx context.Context, items <-chan source.PhotoItem, results chan<- processResult, opts *IngestOptions) {
	for item := range items {
		if ctx.Err() != nil {
			// Keep draining so the producer never blocks.
			results <- processResult{sourceID: item.SourceID, err: ctx.Err()}
			continue
		}
		results <- s.processItem(ctx, item, opts)
	}
}

func (s *IngestService) processItem(ctx context.Context, item source.PhotoItem, opts *IngestOptions) processResult {
	result := processResult{sourceID: item.SourceID}

	data, err := s.readImage(ctx, item)
	if err != nil {
		result.err = fmt.Errorf("failed to read image: %w", err)
		return result
	}

	sub, err := s.moderation.Submit(ctx, &SubmitRequest{
		ContributorID:  opts.ContributorID,
		ScientificName: item.ScientificName,
		Tags:           domain.StringArray(item.Tags),
		Image:          data,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.WithFields(logger.Fields{
				"source_id":       item.SourceID,
				"scientific_name": item.ScientificName,
			}).Warn("Unknown species, skipping")
			result.skipped = true
			return result
		}
		result.err = err
		return result
	}

	if opts.AutoApprove {
		if _, err := s.moderation.Approve(ctx, sub.ID, opts.Feedback, opts.ReviewerID); err != nil {
			result.err = fmt.Errorf("approve submission %d: %w", sub.ID, err)
			return result
		}
		result.approved = true
	}
	return result
}

func (s *IngestService) readImage(ctx context.Context, item source.PhotoItem) ([]byte, error) {
	if item.LocalPath != "" {
		return os.ReadFile(item.LocalPath)
	}
	if item.URL != "" {
		return s.images.Fetch(ctx, item.URL)
	}
	return nil, fmt.Errorf("item %s has no image location", item.SourceID)
}
