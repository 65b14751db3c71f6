package storage

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/fishlens/internal/domain"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "http://cdn.example.com/")
	require.NoError(t, err)

	payload := []byte("fish bytes")
	require.NoError(t, s.Upload(ctx, "ab/abcdef.png", bytes.NewReader(payload), int64(len(payload)), "image/png"))

	ok, err := s.Exists(ctx, "ab/abcdef.png")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "http://cdn.example.com/ab/abcdef.png", s.GetURL("ab/abcdef.png"))

	f := NewImageFetcher(s, time.Second, 1024)
	got, err := f.Fetch(ctx, "ab/abcdef.png")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, s.Delete(ctx, "ab/abcdef.png"))
	require.NoError(t, s.Delete(ctx, "ab/abcdef.png"))
	_, err = f.Fetch(ctx, "ab/abcdef.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPhotoKey(t *testing.T) {
	hash := "abcdef0123456789abcdef0123456789"
	assert.Equal(t, "ab/"+hash+".jpg", PhotoKey(hash, "jpeg"))
	assert.Equal(t, "ab/"+hash+".png", PhotoKey(hash, "png"))
	assert.Equal(t, "image/jpeg", ContentType("jpeg"))
	assert.Equal(t, "application/octet-stream", ContentType("bmp"))
}

func TestLocalStorage_KeyStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root, "")
	require.NoError(t, err)

	p, err := s.path("../../etc/passwd")
	require.NoError(t, err)
	assert.Contains(t, p, root)
}

func TestImageFetcher_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			_, _ = w.Write([]byte("remote"))
		case "/big.png":
			_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	f := NewImageFetcher(s, time.Second, 16)
	ctx := context.Background()

	got, err := f.Fetch(ctx, srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("remote"), got)
	assert.Equal(t, srv.URL+"/ok.png", f.URL(srv.URL+"/ok.png"))

	_, err = f.Fetch(ctx, srv.URL+"/missing.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.Fetch(ctx, srv.URL+"/big.png")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeLocal, detectStorageType(""))
	assert.Equal(t, StorageTypeR2, detectStorageType("https://acct.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.us-west-2.amazonaws.com"))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("localhost:9000"))
}
