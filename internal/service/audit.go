package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/fishlens/internal/domain"
	"github.com/timmy/fishlens/internal/logger"
	"github.com/timmy/fishlens/internal/metrics"
)

const auditWriteTimeout = 5 * time.Second

// AuditStore persists search records.
type AuditStore interface {
	Create(ctx context.Context, rec *domain.SearchRecord) error
	ListByRequester(ctx context.Context, requesterID uint, limit int) ([]domain.SearchRecord, error)
}

// AuditLog records every catalog query asynchronously. Recording never
// blocks and never fails the query: a full buffer or a failed write is
// logged and counted.
type AuditLog struct {
	store   AuditStore
	queue   chan domain.SearchRecord
	stopCh  chan struct{}
	once    sync.Once
	closed  atomic.Bool
	wg      sync.WaitGroup
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewAuditLog starts the single persistence worker.
func NewAuditLog(store AuditStore, bufferSize int, m *metrics.Metrics, log *logger.Logger) *AuditLog {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if log == nil {
		log = logger.GetDefault()
	}
	a := &AuditLog{
		store:   store,
		queue:   make(chan domain.SearchRecord, bufferSize),
		stopCh:  make(chan struct{}),
		metrics: m,
		logger:  log.WithField(logger.FieldComponent, "audit"),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Record enqueues a search record. It returns false if the record was dropped.
func (a *AuditLog) Record(requesterID uint, method domain.SearchMethod, content string) bool {
	rec := domain.SearchRecord{
		RequesterID: requesterID,
		Method:      method,
		Content:     content,
		SearchedAt:  time.Now(),
	}
	if a.closed.Load() {
		a.drop(rec, "audit log closed")
		return false
	}
	select {
	case a.queue <- rec:
		return true
	default:
		a.drop(rec, "audit queue full, dropping search record")
		return false
	}
}

// List returns a requester's search history, newest first.
func (a *AuditLog) List(ctx context.Context, requesterID uint, limit int) ([]domain.SearchRecord, error) {
	return a.store.ListByRequester(ctx, requesterID, limit)
}

// Close stops accepting records, drains the buffer and waits for the worker
// until ctx expires.
func (a *AuditLog) Close(ctx context.Context) error {
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.stopCh)
	})
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AuditLog) run() {
	defer a.wg.Done()
	for {
		select {
		case rec := <-a.queue:
			a.write(rec)
		case <-a.stopCh:
			a.drain()
			return
		}
	}
}

func (a *AuditLog) drain() {
	for {
		select {
		case rec := <-a.queue:
			a.write(rec)
		default:
			return
		}
	}
}

func (a *AuditLog) write(rec domain.SearchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	if err := a.store.Create(ctx, &rec); err != nil {
		a.metrics.IncAuditFailure()
		a.logger.WithFields(logger.Fields{
			logger.FieldRequesterID: rec.RequesterID,
			logger.FieldMethod:      rec.Method,
		}).WithError(err).Warn("Failed to persist search record")
		return
	}
	a.metrics.IncAuditWritten()
}

func (a *AuditLog) drop(rec domain.SearchRecord, msg string) {
	a.metrics.IncAuditDropped()
	a.logger.WithFields(logger.Fields{
		logger.FieldRequesterID: rec.RequesterID,
		logger.FieldMethod:      rec.Method,
	}).Warn(msg)
}
