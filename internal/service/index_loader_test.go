package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/fishlens/internal/index"
)

func TestIndexLoader_PopulateSkipsFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	entries := approveAll(t, env,
		pngImage(t, red, blue),
		pngImage(t, green, white),
		pngImage(t, blue, blue),
	)
	// One image disappears; its entry must be skipped, not fail the load.
	require.NoError(t, env.objects.Delete(ctx, entries[1].ImageReference))

	fresh := index.NewMemory(0)
	loader := NewIndexLoader(env.store, env.images, env.extractor, fresh, 2, nil, nil)
	stats, err := loader.Populate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.Indexed)
	assert.EqualValues(t, 1, stats.Skipped)
	assert.True(t, fresh.Ready())
	assert.True(t, fresh.Contains(entries[0].ID))
	assert.False(t, fresh.Contains(entries[1].ID))
	assert.True(t, fresh.Contains(entries[2].ID))
}

func TestIndexLoader_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	approveAll(t, env, pngImage(t, red, blue))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fresh := index.NewMemory(0)
	_, err := NewIndexLoader(env.store, env.images, env.extractor, fresh, 2, nil, nil).Populate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, fresh.Ready())
}

func TestIndexLoader_EmptyCatalog(t *testing.T) {
	env := newTestEnv(t)
	stats, err := NewIndexLoader(env.store, env.images, env.extractor, env.index, 4, nil, nil).Populate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.True(t, env.index.Ready())
}
