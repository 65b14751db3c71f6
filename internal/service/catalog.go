package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/fishlens/internal/domain"
	"github.com/timmy/fishlens/internal/index"
	"github.com/timmy/fishlens/internal/logger"
	"github.com/timmy/fishlens/internal/metrics"
	"github.com/timmy/fishlens/internal/repository"
)

// CatalogService manages taxonomy and direct access to catalog entries.
type CatalogService struct {
	store   *repository.Store
	index   *index.Memory
	images  ImageSource
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store *repository.Store, idx *index.Memory, images ImageSource, m *metrics.Metrics, log *logger.Logger) *CatalogService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &CatalogService{
		store:   store,
		index:   idx,
		images:  images,
		metrics: m,
		logger:  log.WithField(logger.FieldComponent, "catalog"),
	}
}

// CreateFishType adds a taxonomy row. Both names are required and unique.
func (s *CatalogService) CreateFishType(ctx context.Context, ft *domain.FishType) (*domain.FishType, error) {
	ft.CommonName = strings.TrimSpace(ft.CommonName)
	ft.ScientificName = strings.TrimSpace(ft.ScientificName)
	if ft.CommonName == "" || ft.ScientificName == "" {
		return nil, fmt.Errorf("%w: common and scientific names are required", domain.ErrInvalidInput)
	}
	if len(ft.CommonName) > 40 || len(ft.ScientificName) > 40 {
		return nil, fmt.Errorf("%w: names are limited to 40 characters", domain.ErrInvalidInput)
	}
	if err := s.store.FishTypes.Create(ctx, ft); err != nil {
		return nil, fmt.Errorf("create fish type %q: %w", ft.ScientificName, err)
	}
	return ft, nil
}

// ListFishTypes returns the taxonomy ordered by common name.
func (s *CatalogService) ListFishTypes(ctx context.Context) ([]domain.FishType, error) {
	return s.store.FishTypes.List(ctx)
}

// GetEntry returns a catalog entry with its taxonomy row.
func (s *CatalogService) GetEntry(ctx context.Context, id uint) (*domain.CatalogMatch, error) {
	entry, err := s.store.Catalog.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog entry %d: %w", id, err)
	}
	ft, err := s.store.FishTypes.GetByID(ctx, entry.TypeID)
	if err != nil {
		return nil, fmt.Errorf("fish type %d: %w", entry.TypeID, err)
	}
	return &domain.CatalogMatch{
		Entry:    *entry,
		FishType: *ft,
		ImageURL: s.images.URL(entry.ImageReference),
	}, nil
}

// RemoveEntry deletes a catalog entry, then drops its descriptor. A query
// that scans between the two steps has the id dropped during hydration.
func (s *CatalogService) RemoveEntry(ctx context.Context, id uint) error {
	if err := s.store.Catalog.Delete(ctx, id); err != nil {
		return fmt.Errorf("catalog entry %d: %w", id, err)
	}
	s.index.Remove(id)
	s.metrics.SetIndexSize(s.index.Len())
	s.logger.WithField(logger.FieldCatalogID, id).Info("Catalog entry removed")
	return nil
}
