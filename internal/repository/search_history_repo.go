package repository

import (
	"context"

	"github.com/timmy/fishlens/internal/domain"
	"gorm.io/gorm"
)

// SearchHistoryRepository persists audited queries.
type SearchHistoryRepository struct {
	db *gorm.DB
}

// NewSearchHistoryRepository creates a new SearchHistoryRepository.
func NewSearchHistoryRepository(db *gorm.DB) *SearchHistoryRepository {
	return &SearchHistoryRepository{db: db}
}

// Create inserts one search record.
func (r *SearchHistoryRepository) Create(ctx context.Context, rec *domain.SearchRecord) error {
	return translate(r.db.WithContext(ctx).Create(rec).Error)
}

// ListByRequester returns a requester's history, newest first.
func (r *SearchHistoryRepository) ListByRequester(ctx context.Context, requesterID uint, limit int) ([]domain.SearchRecord, error) {
	var rows []domain.SearchRecord
	q := r.db.WithContext(ctx).Where("requester_id = ?", requesterID).Order("searched_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}
