package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/fishlens/internal/domain"
	"gorm.io/gorm"
)

// Store groups the catalog repositories over one database handle so that a
// multi-table change can run inside a single transaction.
type Store struct {
	db *gorm.DB

	FishTypes   *FishTypeRepository
	Submissions *SubmissionRepository
	Catalog     *CatalogRepository
	Searches    *SearchHistoryRepository
}

// NewStore creates a Store bound to db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		FishTypes:   NewFishTypeRepository(db),
		Submissions: NewSubmissionRepository(db),
		Catalog:     NewCatalogRepository(db),
		Searches:    NewSearchHistoryRepository(db),
	}
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store whose repositories share one transaction.
// Any error returned by fn rolls the transaction back and is returned as-is.
// Commit failures are reported as domain.ErrPersistence.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(NewStore(tx))
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate maps gorm errors onto the domain taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}
