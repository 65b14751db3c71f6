package repository

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/timmy/fishlens/internal/domain"
	"gorm.io/gorm"
)

// CatalogRepository handles approved catalog entries.
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Create inserts a catalog entry. SubmissionID is unique, so a second entry
// for the same submission fails.
func (r *CatalogRepository) Create(ctx context.Context, entry *domain.CatalogEntry) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

// GetByID retrieves a catalog entry by its ID.
func (r *CatalogRepository) GetByID(ctx context.Context, id uint) (*domain.CatalogEntry, error) {
	var entry domain.CatalogEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

// GetBySubmissionID retrieves the entry created from a submission.
func (r *CatalogRepository) GetBySubmissionID(ctx context.Context, submissionID uint) (*domain.CatalogEntry, error) {
	var entry domain.CatalogEntry
	if err := r.db.WithContext(ctx).First(&entry, "submission_id = ?", submissionID).Error; err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

// GetByIDs fetches entries in one query. The result is keyed by ID; IDs with
// no row are simply absent.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: catalog entry IDs.
// Returns:
//   - map[uint]domain.CatalogEntry: rows keyed by ID.
//   - error: domain.ErrPersistence on store failure.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]domain.CatalogEntry, error) {
	out := make(map[uint]domain.CatalogEntry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.CatalogEntry
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	for _, e := range rows {
		out[e.ID] = e
	}
	return out, nil
}

// ListAll returns every catalog entry in ID order.
func (r *CatalogRepository) ListAll(ctx context.Context) ([]domain.CatalogEntry, error) {
	var rows []domain.CatalogEntry
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

// ListByType returns up to limit entries of one fish type, newest first.
func (r *CatalogRepository) ListByType(ctx context.Context, typeID uint, limit int) ([]domain.CatalogEntry, error) {
	var rows []domain.CatalogEntry
	q := r.db.WithContext(ctx).Where("type_id = ?", typeID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

// SearchByTag returns entries with at least one tag containing tag as a
// case-insensitive substring, newest first. Matching is per tag, so a needle
// never spans two tags. A LIKE over the stored JSON narrows the scan when the
// needle is ASCII; the tag list itself decides.
func (r *CatalogRepository) SearchByTag(ctx context.Context, tag string, limit int) ([]domain.CatalogEntry, error) {
	needle := strings.TrimSpace(tag)
	out := []domain.CatalogEntry{}
	if needle == "" {
		return out, nil
	}
	pattern := tagPattern(needle)

	for offset := 0; ; offset += tagScanBatch {
		var rows []domain.CatalogEntry
		q := r.db.WithContext(ctx).
			Order("created_at DESC, id DESC").
			Limit(tagScanBatch).
			Offset(offset)
		if pattern != "" {
			q = q.Where("LOWER(tags) LIKE ? ESCAPE '\\'", pattern)
		}
		if err := q.Find(&rows).Error; err != nil {
			return nil, translate(err)
		}
		for _, e := range rows {
			if !e.Tags.ContainsFold(needle) {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
		if len(rows) < tagScanBatch {
			return out, nil
		}
	}
}

const tagScanBatch = 200

// tagPattern builds the LIKE prefilter for needle as it appears inside the
// stored JSON text. Empty means scan without a prefilter: LOWER only folds
// ASCII in SQLite.
func tagPattern(needle string) string {
	lower := strings.ToLower(needle)
	for i := 0; i < len(lower); i++ {
		if lower[i] >= utf8.RuneSelf {
			return ""
		}
	}
	v, err := domain.StringArray{lower}.Value()
	if err != nil {
		return ""
	}
	encoded, _ := v.(string)
	encoded = strings.TrimSuffix(strings.TrimPrefix(encoded, `["`), `"]`)
	return "%" + escapeLike(encoded) + "%"
}

// Delete removes an entry. Returns domain.ErrNotFound if no row matched.
func (r *CatalogRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.CatalogEntry{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the number of catalog entries.
func (r *CatalogRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.CatalogEntry{}).Count(&count).Error; err != nil {
		return 0, translate(err)
	}
	return count, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
