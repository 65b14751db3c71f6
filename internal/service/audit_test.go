package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/fishlens/internal/domain"
	"go.uber.org/goleak"
)

type memAuditStore struct {
	mu      sync.Mutex
	records []domain.SearchRecord
	gate    chan struct{} // when non-nil, Create blocks until closed
	fail    bool
}

func (s *memAuditStore) Create(ctx context.Context, rec *domain.SearchRecord) error {
	if s.gate != nil {
		<-s.gate
	}
	if s.fail {
		return errors.New("store down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *memAuditStore) ListByRequester(ctx context.Context, requesterID uint, limit int) ([]domain.SearchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SearchRecord
	for i := len(s.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.records[i].RequesterID == requesterID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *memAuditStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func closeAudit(t *testing.T, a *AuditLog) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))
}

func TestAuditLog_CloseDrains(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := &memAuditStore{}
	a := NewAuditLog(store, 16, nil, nil)
	for i := 0; i < 10; i++ {
		assert.True(t, a.Record(1, domain.SearchMethodName, "clownfish"))
	}
	closeAudit(t, a)
	assert.Equal(t, 10, store.len())

	// Records after Close are dropped, not panics.
	assert.False(t, a.Record(1, domain.SearchMethodTag, "late"))
	closeAudit(t, a)

	rows, err := a.List(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestAuditLog_FullBufferNeverBlocks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := &memAuditStore{gate: make(chan struct{})}
	a := NewAuditLog(store, 1, nil, nil)

	done := make(chan int)
	go func() {
		accepted := 0
		for i := 0; i < 50; i++ {
			if a.Record(2, domain.SearchMethodImage, "md5") {
				accepted++
			}
		}
		done <- accepted
	}()

	select {
	case accepted := <-done:
		// One record in the worker, one in the buffer, the rest dropped.
		assert.LessOrEqual(t, accepted, 2)
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full buffer")
	}

	close(store.gate)
	closeAudit(t, a)
}

func TestAuditLog_WriteFailureIsSwallowed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := &memAuditStore{fail: true}
	a := NewAuditLog(store, 4, nil, nil)
	assert.True(t, a.Record(3, domain.SearchMethodTag, "reef"))
	closeAudit(t, a)
	assert.Zero(t, store.len())
}
