package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timmy/fishlens/internal/config"
	"github.com/timmy/fishlens/internal/domain"
	"github.com/timmy/fishlens/internal/index"
	"github.com/timmy/fishlens/internal/repository"
	"github.com/timmy/fishlens/internal/storage"
)

// pngImage renders a 32x32 image whose left half is a and right half is b.
func pngImage(t *testing.T, a, b color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if x < 16 {
				img.SetRGBA(x, y, a)
			} else {
				img.SetRGBA(x, y, b)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var (
	red   = color.RGBA{R: 220, G: 30, B: 30, A: 255}
	blue  = color.RGBA{R: 20, G: 40, B: 210, A: 255}
	green = color.RGBA{R: 30, G: 200, B: 60, A: 255}
	white = color.RGBA{R: 250, G: 250, B: 250, A: 255}
)

type testEnv struct {
	store      *repository.Store
	objects    *storage.LocalStorage
	images     *storage.ImageFetcher
	extractor  Extractor
	index      *index.Memory
	audit      *AuditLog
	moderation *ModerationService
	search     *SearchService
	catalog    *CatalogService
	fishType   domain.FishType
}

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewStore(db)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newTestStore(t)
	objects, err := storage.NewLocalStorage(t.TempDir(), "http://img.test")
	require.NoError(t, err)
	images := storage.NewImageFetcher(objects, time.Second, 1<<20)
	extractor := NewGuardedExtractor(NewColorExtractor(), &GuardConfig{
		Timeout:        5 * time.Second,
		MaxConcurrency: 4,
		CacheTTL:       time.Minute,
	}, nil)
	idx := index.NewMemory(extractor.Dimensions())
	audit := NewAuditLog(store.Searches, 64, nil, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = audit.Close(ctx)
	})

	env := &testEnv{
		store:     store,
		objects:   objects,
		images:    images,
		extractor: extractor,
		index:     idx,
		audit:     audit,
	}
	env.moderation = NewModerationService(store, objects, images, extractor, idx, &ModerationConfig{MaxImageBytes: 1 << 20}, nil, nil)
	env.search = NewSearchService(store, extractor, idx, images, audit, &SearchConfig{DefaultCount: 5, MaxCount: 20}, nil, nil)
	env.catalog = NewCatalogService(store, idx, images, nil, nil)

	ft, err := env.catalog.CreateFishType(context.Background(), &domain.FishType{
		CommonName:     "Clownfish",
		ScientificName: "Amphiprion ocellaris",
		Description:    "Orange with white bands",
	})
	require.NoError(t, err)
	env.fishType = *ft
	return env
}

// submit files a pending submission for img.
func (e *testEnv) submit(t *testing.T, img []byte, tags ...string) *domain.Submission {
	t.Helper()
	sub, err := e.moderation.Submit(context.Background(), &SubmitRequest{
		ContributorID:  11,
		ScientificName: e.fishType.ScientificName,
		Tags:           tags,
		Image:          img,
	})
	require.NoError(t, err)
	return sub
}
