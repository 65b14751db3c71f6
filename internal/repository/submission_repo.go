package repository

import (
	"context"

	"github.com/timmy/fishlens/internal/domain"
	"gorm.io/gorm"
)

// SubmissionRepository handles moderation queue rows.
type SubmissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new submission.
func (r *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	if sub.State == "" {
		sub.State = domain.SubmissionPending
	}
	return translate(r.db.WithContext(ctx).Create(sub).Error)
}

// GetByID retrieves a submission by its ID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uint) (*domain.Submission, error) {
	var sub domain.Submission
	if err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// TransitionFromPending moves a submission out of pending. The update is
// conditional on the stored state so two reviewers racing on the same row
// cannot both succeed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: submission ID.
//   - review: target state, feedback, reviewer and review time.
// Returns:
//   - error: domain.ErrInvalidStateTransition if the row was not pending
//     (or does not exist), domain.ErrPersistence on store failure.
func (r *SubmissionRepository) TransitionFromPending(ctx context.Context, id uint, review domain.Review) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("id = ? AND state = ?", id, domain.SubmissionPending).
		Updates(map[string]interface{}{
			"state":       review.State,
			"feedback":    review.Feedback,
			"reviewer_id": review.ReviewerID,
			"reviewed_at": review.ReviewedAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected != 1 {
		return domain.ErrInvalidStateTransition
	}
	return nil
}

// ListByState returns submissions in the given state, oldest first.
func (r *SubmissionRepository) ListByState(ctx context.Context, state domain.SubmissionState, limit, offset int) ([]domain.Submission, error) {
	var subs []domain.Submission
	q := r.db.WithContext(ctx).Where("state = ?", state).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&subs).Error; err != nil {
		return nil, translate(err)
	}
	return subs, nil
}

// ListByContributor returns a contributor's submissions, newest first.
func (r *SubmissionRepository) ListByContributor(ctx context.Context, contributorID uint, limit, offset int) ([]domain.Submission, error) {
	var subs []domain.Submission
	q := r.db.WithContext(ctx).Where("contributor_id = ?", contributorID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&subs).Error; err != nil {
		return nil, translate(err)
	}
	return subs, nil
}

// CountByState counts submissions in a state.
func (r *SubmissionRepository) CountByState(ctx context.Context, state domain.SubmissionState) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Submission{}).Where("state = ?", state).Count(&count).Error; err != nil {
		return 0, translate(err)
	}
	return count, nil
}
