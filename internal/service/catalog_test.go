package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/fishlens/internal/domain"
)

func TestCreateFishType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.catalog.CreateFishType(ctx, &domain.FishType{CommonName: " ", ScientificName: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.catalog.CreateFishType(ctx, &domain.FishType{CommonName: "Clownfish", ScientificName: "Amphiprion percula"})
	assert.ErrorIs(t, err, domain.ErrPersistence)

	ft, err := env.catalog.CreateFishType(ctx, &domain.FishType{CommonName: "Blue tang", ScientificName: "Paracanthurus hepatus"})
	require.NoError(t, err)
	assert.NotZero(t, ft.ID)

	types, err := env.catalog.ListFishTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "Blue tang", types[0].CommonName)
}

func TestRemoveEntry_DropsDescriptor(t *testing.T) {
	env := newTestEnv(t)
	env.index.MarkReady()
	ctx := context.Background()
	entries := approveAll(t, env, pngImage(t, red, blue))
	id := entries[0].ID

	got, err := env.catalog.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Clownfish", got.FishType.CommonName)

	require.NoError(t, env.catalog.RemoveEntry(ctx, id))
	assert.False(t, env.index.Contains(id))

	_, err = env.catalog.GetEntry(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, env.catalog.RemoveEntry(ctx, id), domain.ErrNotFound)

	resp, err := env.search.QueryByImage(ctx, pngImage(t, red, blue), 5, 1)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}
