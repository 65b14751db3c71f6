package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/timmy/fishlens/internal/domain"
	"github.com/timmy/fishlens/internal/index"
	"github.com/timmy/fishlens/internal/logger"
	"github.com/timmy/fishlens/internal/metrics"
	"github.com/timmy/fishlens/internal/repository"
)

// SearchConfig holds configuration for the search service.
type SearchConfig struct {
	DefaultCount     int
	MaxCount         int
	ServeBeforeReady bool
}

// SearchService answers catalog queries by image similarity, by species
// name and by tag. Every query that produces a result list is recorded in
// the audit log.
type SearchService struct {
	store     *repository.Store
	extractor Extractor
	index     *index.Memory
	images    ImageSource
	audit     *AuditLog
	cfg       SearchConfig
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(
	store *repository.Store,
	extractor Extractor,
	idx *index.Memory,
	images ImageSource,
	audit *AuditLog,
	cfg *SearchConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) *SearchService {
	if log == nil {
		log = logger.GetDefault()
	}
	c := *cfg
	if c.DefaultCount <= 0 {
		c.DefaultCount = 5
	}
	if c.MaxCount < c.DefaultCount {
		c.MaxCount = c.DefaultCount
	}
	return &SearchService{
		store:     store,
		extractor: extractor,
		index:     idx,
		images:    images,
		audit:     audit,
		cfg:       c,
		metrics:   m,
		logger:    log.WithField(logger.FieldComponent, "search"),
	}
}

// log returns a logger from context if available, otherwise the service logger
func (s *SearchService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil && l != logger.GetDefault() {
		return l.WithField(logger.FieldComponent, "search")
	}
	return s.logger
}

// SearchResponse is the ranked result of one query.
type SearchResponse struct {
	Results []domain.CatalogMatch `json:"results"`
	Total   int                   `json:"total"`
	Method  domain.SearchMethod   `json:"method"`
}

// DefaultCount is the result count used when a caller does not ask for one.
func (s *SearchService) DefaultCount() int {
	return s.cfg.DefaultCount
}

// clampCount applies the ceiling to a requested count. k <= 0 yields 0.
func (s *SearchService) clampCount(k int) int {
	if k <= 0 {
		return 0
	}
	if k > s.cfg.MaxCount {
		return s.cfg.MaxCount
	}
	return k
}

// QueryByImage returns the catalog entries most similar to an uploaded photo.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - imageData: encoded photo.
//   - k: requested result count; <= 0 returns no results, larger than the
//     configured maximum is clamped.
//   - requesterID: identity recorded in the audit log.
//
// Returns:
//   - *SearchResponse: matches in ascending distance order.
//   - error: domain.ErrIndexNotReady, domain.ErrExtraction (client error,
//     the catalog is not touched) or domain.ErrPersistence.
func (s *SearchService) QueryByImage(ctx context.Context, imageData []byte, k int, requesterID uint) (*SearchResponse, error) {
	method := domain.SearchMethodImage
	if !s.index.Ready() && !s.cfg.ServeBeforeReady {
		s.metrics.IncSearch(string(method), "not_ready")
		return nil, domain.ErrIndexNotReady
	}
	if len(imageData) == 0 {
		return nil, fmt.Errorf("%w: image is required", domain.ErrInvalidInput)
	}

	descriptor, err := s.extractor.Extract(ctx, imageData)
	if err != nil {
		s.metrics.IncSearch(string(method), "extraction_error")
		return nil, err
	}

	start := time.Now()
	matches, err := s.index.Query(descriptor, s.clampCount(k))
	s.metrics.ObserveIndexQuery(time.Since(start))
	if err != nil {
		// A descriptor of the wrong length comes from the query image side.
		s.metrics.IncSearch(string(method), "extraction_error")
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	results, err := s.hydrate(ctx, matches)
	if err != nil {
		s.metrics.IncSearch(string(method), "error")
		return nil, err
	}

	s.audit.Record(requesterID, method, calculateMD5(imageData))
	s.metrics.IncSearch(string(method), "ok")
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldRequesterID: requesterID,
		logger.FieldCount:       len(results),
		logger.FieldDurationMs:  time.Since(start).Milliseconds(),
	}).Debug("Image query served")
	return &SearchResponse{Results: results, Total: len(results), Method: method}, nil
}

// QueryByName returns entries of the species whose common or scientific
// name matches name exactly, ignoring case. The common name wins.
func (s *SearchService) QueryByName(ctx context.Context, name string, k int, requesterID uint) (*SearchResponse, error) {
	method := domain.SearchMethodName
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	fishType, err := s.store.FishTypes.GetByName(ctx, name)
	if err != nil {
		s.metrics.IncSearch(string(method), outcome(err))
		return nil, fmt.Errorf("fish type %q: %w", name, err)
	}
	results := []domain.CatalogMatch{}
	if limit := s.clampCount(k); limit > 0 {
		entries, err := s.store.Catalog.ListByType(ctx, fishType.ID, limit)
		if err != nil {
			s.metrics.IncSearch(string(method), "error")
			return nil, err
		}
		for _, e := range entries {
			results = append(results, domain.CatalogMatch{Entry: e, FishType: *fishType, ImageURL: s.images.URL(e.ImageReference)})
		}
	}
	s.audit.Record(requesterID, method, name)
	s.metrics.IncSearch(string(method), "ok")
	return &SearchResponse{Results: results, Total: len(results), Method: method}, nil
}

// QueryByTag returns entries carrying a tag that contains tag, ignoring case.
func (s *SearchService) QueryByTag(ctx context.Context, tag string, k int, requesterID uint) (*SearchResponse, error) {
	method := domain.SearchMethodTag
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, fmt.Errorf("%w: tag is required", domain.ErrInvalidInput)
	}
	results := []domain.CatalogMatch{}
	if limit := s.clampCount(k); limit > 0 {
		entries, err := s.store.Catalog.SearchByTag(ctx, tag, limit)
		if err != nil {
			s.metrics.IncSearch(string(method), "error")
			return nil, err
		}
		if results, err = s.hydrateEntries(ctx, entries, nil); err != nil {
			s.metrics.IncSearch(string(method), "error")
			return nil, err
		}
	}
	s.audit.Record(requesterID, method, tag)
	s.metrics.IncSearch(string(method), "ok")
	return &SearchResponse{Results: results, Total: len(results), Method: method}, nil
}

// History returns a requester's recent queries, newest first. limit <= 0
// uses the default count.
func (s *SearchService) History(ctx context.Context, requesterID uint, limit int) ([]domain.SearchRecord, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultCount
	}
	return s.audit.List(ctx, requesterID, s.clampCount(limit))
}

// GetStats returns catalog and index statistics.
func (s *SearchService) GetStats(ctx context.Context) (map[string]interface{}, error) {
	catalogCount, err := s.store.Catalog.Count(ctx)
	if err != nil {
		return nil, err
	}
	pendingCount, err := s.store.Submissions.CountByState(ctx, domain.SubmissionPending)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"catalog_entries":     catalogCount,
		"pending_submissions": pendingCount,
		"index_entries":       s.index.Len(),
		"index_ready":         s.index.Ready(),
		"descriptor_model":    s.extractor.Model(),
	}, nil
}

// hydrate attaches catalog rows and taxonomy to index matches, keeping rank
// order. Ids removed from the catalog since the scan are dropped.
func (s *SearchService) hydrate(ctx context.Context, matches []index.Match) ([]domain.CatalogMatch, error) {
	if len(matches) == 0 {
		return []domain.CatalogMatch{}, nil
	}
	ids := make([]uint, len(matches))
	distances := make(map[uint]float64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
		distances[m.ID] = m.Distance
	}
	byID, err := s.store.Catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			entries = append(entries, e)
		}
	}
	return s.hydrateEntries(ctx, entries, distances)
}

func (s *SearchService) hydrateEntries(ctx context.Context, entries []domain.CatalogEntry, distances map[uint]float64) ([]domain.CatalogMatch, error) {
	typeIDs := make([]uint, 0, len(entries))
	seen := make(map[uint]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.TypeID]; !ok {
			seen[e.TypeID] = struct{}{}
			typeIDs = append(typeIDs, e.TypeID)
		}
	}
	types, err := s.store.FishTypes.GetByIDs(ctx, typeIDs)
	if err != nil {
		return nil, err
	}

	results := make([]domain.CatalogMatch, 0, len(entries))
	for _, e := range entries {
		m := domain.CatalogMatch{
			Entry:    e,
			FishType: types[e.TypeID],
			ImageURL: s.images.URL(e.ImageReference),
		}
		// +Inf (zero-norm descriptor) has no JSON encoding; leave it unset.
		if d, ok := distances[e.ID]; ok && !math.IsInf(d, 0) {
			d := d
			m.Distance = &d
		}
		results = append(results, m)
	}
	return results, nil
}

func outcome(err error) string {
	if errors.Is(err, domain.ErrNotFound) {
		return "not_found"
	}
	return "error"
}
