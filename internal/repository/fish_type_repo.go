package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/timmy/fishlens/internal/domain"
	"gorm.io/gorm"
)

// FishTypeRepository handles taxonomy rows.
type FishTypeRepository struct {
	db *gorm.DB
}

// NewFishTypeRepository creates a new FishTypeRepository.
func NewFishTypeRepository(db *gorm.DB) *FishTypeRepository {
	return &FishTypeRepository{db: db}
}

// Create inserts a new fish type.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fishType: row to persist; ID is assigned on success.
// Returns:
//   - error: domain.ErrPersistence wrapping the driver error (including unique violations).
func (r *FishTypeRepository) Create(ctx context.Context, fishType *domain.FishType) error {
	return translate(r.db.WithContext(ctx).Create(fishType).Error)
}

// GetByID retrieves a fish type by its ID.
func (r *FishTypeRepository) GetByID(ctx context.Context, id uint) (*domain.FishType, error) {
	var ft domain.FishType
	if err := r.db.WithContext(ctx).First(&ft, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &ft, nil
}

// GetByIDs retrieves fish types keyed by ID. Unknown IDs are absent from the map.
func (r *FishTypeRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]domain.FishType, error) {
	out := make(map[uint]domain.FishType, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.FishType
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	for _, ft := range rows {
		out[ft.ID] = ft
	}
	return out, nil
}

// GetByScientificName looks a type up by scientific name, ignoring case.
func (r *FishTypeRepository) GetByScientificName(ctx context.Context, name string) (*domain.FishType, error) {
	var ft domain.FishType
	err := r.db.WithContext(ctx).
		Where("LOWER(scientific_name) = ?", strings.ToLower(strings.TrimSpace(name))).
		First(&ft).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ft, nil
}

// GetByName resolves a name against the common name first, then the
// scientific name. Matching ignores case.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: common or scientific name.
// Returns:
//   - *domain.FishType: the matching row.
//   - error: domain.ErrNotFound when neither name matches.
func (r *FishTypeRepository) GetByName(ctx context.Context, name string) (*domain.FishType, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	var ft domain.FishType
	err := r.db.WithContext(ctx).Where("LOWER(common_name) = ?", needle).First(&ft).Error
	if err == nil {
		return &ft, nil
	}
	if err = translate(err); !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return r.GetByScientificName(ctx, name)
}

// List returns all fish types ordered by common name.
func (r *FishTypeRepository) List(ctx context.Context) ([]domain.FishType, error) {
	var rows []domain.FishType
	if err := r.db.WithContext(ctx).Order("common_name ASC").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}
