package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/fishlens/internal/domain"
	"github.com/timmy/fishlens/internal/index"
	"github.com/timmy/fishlens/internal/logger"
	"github.com/timmy/fishlens/internal/metrics"
	"github.com/timmy/fishlens/internal/repository"
	"github.com/timmy/fishlens/internal/storage"
)

// ModerationService owns the submission state machine:
// pending -> approved | rejected, both terminal.
type ModerationService struct {
	store     *repository.Store
	objects   storage.PhotoStore
	images    ImageSource
	extractor Extractor
	index     *index.Memory
	maxBytes  int64
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// ModerationConfig holds configuration for the moderation service.
type ModerationConfig struct {
	MaxImageBytes int64
}

// NewModerationService creates a new moderation service.
func NewModerationService(
	store *repository.Store,
	objects storage.PhotoStore,
	images ImageSource,
	extractor Extractor,
	idx *index.Memory,
	cfg *ModerationConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) *ModerationService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &ModerationService{
		store:     store,
		objects:   objects,
		images:    images,
		extractor: extractor,
		index:     idx,
		maxBytes:  cfg.MaxImageBytes,
		metrics:   m,
		logger:    log.WithField(logger.FieldComponent, "moderation"),
	}
}

// log returns a logger from context if available, otherwise the service logger
func (s *ModerationService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil && l != logger.GetDefault() {
		return l.WithField(logger.FieldComponent, "moderation")
	}
	return s.logger
}

// SubmitRequest is a contributor's photograph awaiting moderation.
type SubmitRequest struct {
	ContributorID  uint
	ScientificName string
	Tags           domain.StringArray
	Image          []byte
}

// Submit validates and stores a photograph and files a pending submission.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: contributor, species and image bytes.
// Returns:
//   - *domain.Submission: the pending submission.
//   - error: domain.ErrInvalidInput for bad input, domain.ErrNotFound for an
//     unknown scientific name, domain.ErrPersistence on store failure.
func (s *ModerationService) Submit(ctx context.Context, req *SubmitRequest) (*domain.Submission, error) {
	if req.ContributorID == 0 {
		return nil, fmt.Errorf("%w: contributor id is required", domain.ErrInvalidInput)
	}
	name := strings.TrimSpace(req.ScientificName)
	if name == "" {
		return nil, fmt.Errorf("%w: scientific name is required", domain.ErrInvalidInput)
	}
	if s.maxBytes > 0 && int64(len(req.Image)) > s.maxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidInput, s.maxBytes)
	}
	format, err := sniffImage(req.Image)
	if err != nil {
		return nil, err
	}

	fishType, err := s.store.FishTypes.GetByScientificName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fish type %q: %w", name, err)
	}

	md5Hash := calculateMD5(req.Image)
	key := storage.PhotoKey(md5Hash, format)

	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: check storage: %v", domain.ErrPersistence, err)
	}
	uploaded := false
	if !exists {
		if err := s.objects.Upload(ctx, key, bytes.NewReader(req.Image), int64(len(req.Image)), storage.ContentType(format)); err != nil {
			return nil, fmt.Errorf("%w: upload image: %v", domain.ErrPersistence, err)
		}
		uploaded = true
	}

	sub := &domain.Submission{
		ContributorID:  req.ContributorID,
		ImageReference: key,
		TypeID:         fishType.ID,
		Tags:           req.Tags,
		State:          domain.SubmissionPending,
	}
	if err := s.store.Submissions.Create(ctx, sub); err != nil {
		// Rollback: delete the object only if this call uploaded it
		if uploaded {
			if delErr := s.objects.Delete(ctx, key); delErr != nil {
				s.log(ctx).WithField("storage_key", key).WithError(delErr).Error("Failed to rollback storage upload")
			}
		}
		return nil, fmt.Errorf("create submission: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldSubmissionID: sub.ID,
		"contributor_id":         sub.ContributorID,
		"type_id":                sub.TypeID,
	}).Info("Submission filed")
	return sub, nil
}

// Approve moves a pending submission to approved and creates its catalog
// entry in the same transaction. After the commit the entry's descriptor is
// inserted into the index before Approve returns. An indexing failure is
// logged as an index inconsistency and not returned; the entry is picked up
// by the next population.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - submissionID: submission to approve.
//   - feedback: moderator note stored on the submission.
//   - reviewerID: moderator identity.
// Returns:
//   - *domain.CatalogEntry: the new entry.
//   - error: domain.ErrNotFound, domain.ErrInvalidStateTransition or
//     domain.ErrPersistence; the submission stays pending on any error.
func (s *ModerationService) Approve(ctx context.Context, submissionID uint, feedback string, reviewerID uint) (*domain.CatalogEntry, error) {
	sub, err := s.loadPending(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	review := domain.Review{
		State:      domain.SubmissionApproved,
		Feedback:   feedback,
		ReviewerID: reviewerID,
		ReviewedAt: time.Now(),
	}
	entry := domain.CatalogEntry{
		TypeID:         sub.TypeID,
		ImageReference: sub.ImageReference,
		Tags:           sub.Tags,
		ContributorID:  sub.ContributorID,
		SubmissionID:   sub.ID,
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Submissions.TransitionFromPending(ctx, sub.ID, review); err != nil {
			return err
		}
		return tx.Catalog.Create(ctx, &entry)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStateTransition) {
			return nil, fmt.Errorf("submission %d: %w", submissionID, err)
		}
		if !errors.Is(err, domain.ErrPersistence) {
			err = fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
		return nil, fmt.Errorf("approve submission %d: %w", submissionID, err)
	}

	s.metrics.IncTransition(string(domain.SubmissionApproved))
	log := s.log(ctx).WithFields(logger.Fields{
		logger.FieldSubmissionID: sub.ID,
		logger.FieldCatalogID:    entry.ID,
		logger.FieldReviewerID:   reviewerID,
	})
	log.Info("Submission approved")

	// The commit is durable; the caller's cancellation must not leave the
	// entry unindexed.
	if err := s.indexEntry(context.WithoutCancel(ctx), &entry); err != nil {
		s.metrics.IncIndexInconsistency()
		log.WithError(fmt.Errorf("%w: %w", domain.ErrIndexInconsistency, err)).
			Error("Catalog entry committed but not indexed")
	}
	return &entry, nil
}

// Reject moves a pending submission to rejected. No catalog entry is
// created and the index is untouched.
func (s *ModerationService) Reject(ctx context.Context, submissionID uint, feedback string, reviewerID uint) (*domain.Submission, error) {
	sub, err := s.loadPending(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	review := domain.Review{
		State:      domain.SubmissionRejected,
		Feedback:   feedback,
		ReviewerID: reviewerID,
		ReviewedAt: time.Now(),
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		return tx.Submissions.TransitionFromPending(ctx, sub.ID, review)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStateTransition) {
			return nil, fmt.Errorf("submission %d: %w", submissionID, err)
		}
		return nil, fmt.Errorf("reject submission %d: %w", submissionID, err)
	}

	s.metrics.IncTransition(string(domain.SubmissionRejected))
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldSubmissionID: sub.ID,
		logger.FieldReviewerID:   reviewerID,
	}).Info("Submission rejected")

	sub.State = review.State
	sub.Feedback = review.Feedback
	sub.ReviewerID = &review.ReviewerID
	sub.ReviewedAt = &review.ReviewedAt
	return sub, nil
}

// Get returns a submission by id.
func (s *ModerationService) Get(ctx context.Context, submissionID uint) (*domain.Submission, error) {
	sub, err := s.store.Submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("submission %d: %w", submissionID, err)
	}
	return sub, nil
}

// ListPending returns the moderation queue, oldest first.
func (s *ModerationService) ListPending(ctx context.Context, limit, offset int) ([]domain.Submission, error) {
	return s.store.Submissions.ListByState(ctx, domain.SubmissionPending, limit, offset)
}

// ListByContributor returns a contributor's submissions, newest first.
func (s *ModerationService) ListByContributor(ctx context.Context, contributorID uint, limit, offset int) ([]domain.Submission, error) {
	return s.store.Submissions.ListByContributor(ctx, contributorID, limit, offset)
}

func (s *ModerationService) loadPending(ctx context.Context, submissionID uint) (*domain.Submission, error) {
	sub, err := s.store.Submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("submission %d: %w", submissionID, err)
	}
	if sub.State != domain.SubmissionPending {
		return nil, fmt.Errorf("submission %d is %s: %w", submissionID, sub.State, domain.ErrInvalidStateTransition)
	}
	return sub, nil
}

func (s *ModerationService) indexEntry(ctx context.Context, entry *domain.CatalogEntry) error {
	data, err := s.images.Fetch(ctx, entry.ImageReference)
	if err != nil {
		return fmt.Errorf("fetch image: %w", err)
	}
	vec, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return err
	}
	if err := s.index.Insert(entry.ID, vec); err != nil {
		return err
	}
	s.metrics.SetIndexSize(s.index.Len())
	return nil
}
