package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/fishlens/internal/domain"
)

// ImageFetcher resolves an image reference to its bytes. A reference is
// either an object key in PhotoStore or an absolute http(s) URL.
type ImageFetcher struct {
	store    PhotoStore
	client   *resty.Client
	maxBytes int64
}

// NewImageFetcher creates a fetcher reading at most maxBytes per image.
func NewImageFetcher(store PhotoStore, timeout time.Duration, maxBytes int64) *ImageFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &ImageFetcher{store: store, client: client, maxBytes: maxBytes}
}

// IsRemote reports whether ref is an absolute http(s) URL.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Fetch loads the image behind ref.
// Returns domain.ErrNotFound (wrapped) when the object or URL does not exist.
func (f *ImageFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if IsRemote(ref) {
		return f.fetchURL(ctx, ref)
	}
	rc, err := f.store.Download(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return f.readLimited(rc, ref)
}

// URL returns the display URL for ref.
func (f *ImageFetcher) URL(ref string) string {
	if IsRemote(ref) {
		return ref
	}
	return f.store.GetURL(ref)
}

func (f *ImageFetcher) fetchURL(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	body := resp.RawBody()
	defer body.Close()

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("image %s: %w", url, domain.ErrNotFound)
	case resp.StatusCode() != http.StatusOK:
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode())
	}
	return f.readLimited(body, url)
}

func (f *ImageFetcher) readLimited(r io.Reader, ref string) ([]byte, error) {
	if f.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", ref, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes: %w", ref, f.maxBytes, domain.ErrInvalidInput)
	}
	return data, nil
}
