package storage

import (
	"context"
	"fmt"
	"io"
)

// PhotoStore holds submitted fish photos keyed by PhotoKey. Catalog entries
// and submissions keep only the key. Implementations return
// domain.ErrNotFound (wrapped) when a key is absent.
type PhotoStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL is the address clients use to display the photo.
	GetURL(key string) string

	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// PhotoKey buckets photos by the first two hex digits of their MD5, so
// identical uploads share one object.
func PhotoKey(md5Hash, format string) string {
	if format == "jpeg" {
		format = "jpg"
	}
	return fmt.Sprintf("%s/%s.%s", md5Hash[:2], md5Hash, format)
}

// ContentType maps a decoded image format to its MIME type.
func ContentType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
