package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/fishlens/internal/domain"
	"gorm.io/gorm"
)

func TestSubmit_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	img := pngImage(t, red, blue)

	tests := []struct {
		name    string
		req     SubmitRequest
		wantErr error
	}{
		{"missing contributor", SubmitRequest{ScientificName: "Amphiprion ocellaris", Image: img}, domain.ErrInvalidInput},
		{"missing name", SubmitRequest{ContributorID: 1, Image: img}, domain.ErrInvalidInput},
		{"not an image", SubmitRequest{ContributorID: 1, ScientificName: "Amphiprion ocellaris", Image: []byte("hello")}, domain.ErrInvalidInput},
		{"unknown species", SubmitRequest{ContributorID: 1, ScientificName: "Nemo nemo", Image: img}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.moderation.Submit(ctx, &req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSubmit_StoresImageAndPendingSubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	img := pngImage(t, red, blue)

	sub := env.submit(t, img, "reef")
	assert.Equal(t, domain.SubmissionPending, sub.State)
	assert.Equal(t, env.fishType.ID, sub.TypeID)
	assert.Equal(t, domain.StringArray{"reef"}, sub.Tags)

	ok, err := env.objects.Exists(ctx, sub.ImageReference)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Regexp(t, `^[0-9a-f]{2}/[0-9a-f]{32}\.png$`, sub.ImageReference)
}

func TestApprove_CreatesEntryAndIndexesIt(t *testing.T) {
	env := newTestEnv(t)
	env.index.MarkReady()
	ctx := context.Background()
	img := pngImage(t, red, blue)
	sub := env.submit(t, img, "reef")

	entry, err := env.moderation.Approve(ctx, sub.ID, "ok", 2)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, entry.SubmissionID)
	assert.Equal(t, sub.ImageReference, entry.ImageReference)
	assert.Equal(t, sub.TypeID, entry.TypeID)

	got, err := env.moderation.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionApproved, got.State)
	assert.Equal(t, "ok", got.Feedback)
	require.NotNil(t, got.ReviewerID)
	assert.EqualValues(t, 2, *got.ReviewerID)

	// The descriptor is in the index before Approve returns.
	assert.True(t, env.index.Contains(entry.ID))

	resp, err := env.search.QueryByImage(ctx, img, 1, 99)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, entry.ID, resp.Results[0].Entry.ID)
	require.NotNil(t, resp.Results[0].Distance)
	assert.InDelta(t, 0, *resp.Results[0].Distance, 1e-6)
	assert.Equal(t, "Clownfish", resp.Results[0].FishType.CommonName)
}

func TestReject_LeavesCatalogAndIndexAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sub := env.submit(t, pngImage(t, green, white))
	before := env.index.Len()

	got, err := env.moderation.Reject(ctx, sub.ID, "not a fish", 3)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionRejected, got.State)

	stored, err := env.moderation.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionRejected, stored.State)
	assert.Equal(t, "not a fish", stored.Feedback)

	n, err := env.store.Catalog.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, before, env.index.Len())
}

func TestTerminalStatesAreFinal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	approved := env.submit(t, pngImage(t, red, blue))
	_, err := env.moderation.Approve(ctx, approved.ID, "ok", 2)
	require.NoError(t, err)

	rejected := env.submit(t, pngImage(t, green, white))
	_, err = env.moderation.Reject(ctx, rejected.ID, "no", 2)
	require.NoError(t, err)

	for _, id := range []uint{approved.ID, rejected.ID} {
		_, err = env.moderation.Approve(ctx, id, "again", 4)
		assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
		_, err = env.moderation.Reject(ctx, id, "again", 4)
		assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	}

	n, err := env.store.Catalog.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "no duplicate catalog entry")

	got, err := env.moderation.Get(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionRejected, got.State)
	assert.Equal(t, "no", got.Feedback)
}

func TestApprove_UnknownSubmission(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.moderation.Approve(context.Background(), 404, "", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.moderation.Reject(context.Background(), 404, "", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApprove_PersistenceFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sub := env.submit(t, pngImage(t, red, blue))

	db := env.store.DB()
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_catalog", func(tx *gorm.DB) {
		if tx.Statement.Table == "catalog_entries" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))
	t.Cleanup(func() { _ = db.Callback().Create().Remove("test:fail_catalog") })

	_, err := env.moderation.Approve(ctx, sub.ID, "ok", 2)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	got, err := env.moderation.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionPending, got.State)
	assert.Nil(t, got.ReviewerID)

	n, err := env.store.Catalog.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, env.index.Len())
}

func TestApprove_IndexFailureIsNotReturned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sub := env.submit(t, pngImage(t, red, blue))

	// The stored object vanishes between submission and approval.
	require.NoError(t, env.objects.Delete(ctx, sub.ImageReference))

	entry, err := env.moderation.Approve(ctx, sub.ID, "ok", 2)
	require.NoError(t, err)
	assert.False(t, env.index.Contains(entry.ID))

	got, err := env.moderation.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionApproved, got.State)
}

func TestApprove_ConcurrentReviewersSingleEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sub := env.submit(t, pngImage(t, red, blue))

	const reviewers = 6
	var wg sync.WaitGroup
	errs := make([]error, reviewers)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.moderation.Approve(ctx, sub.ID, "ok", uint(i+1))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	}
	assert.Equal(t, 1, wins)

	n, err := env.store.Catalog.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, env.index.Len())
}

func TestListPendingAndByContributor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.submit(t, pngImage(t, red, blue))
	b := env.submit(t, pngImage(t, green, white))
	_, err := env.moderation.Reject(ctx, a.ID, "", 1)
	require.NoError(t, err)

	pending, err := env.moderation.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	mine, err := env.moderation.ListByContributor(ctx, 11, 10, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
