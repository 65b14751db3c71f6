package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/timmy/fishlens/internal/config"
	"github.com/timmy/fishlens/internal/domain"
	"github.com/timmy/fishlens/internal/metrics"
	_ "golang.org/x/image/webp"
)

// Extractor maps image bytes to a fixed-length descriptor. Implementations
// are deterministic for a fixed model and safe for concurrent use.
type Extractor interface {
	// Extract returns the descriptor for an encoded image.
	// Errors wrap domain.ErrExtraction.
	Extract(ctx context.Context, imageData []byte) ([]float32, error)

	// Model identifies the descriptor model.
	Model() string

	// Dimensions is the descriptor length, or 0 if unknown until first use.
	Dimensions() int
}

// NewExtractor builds the configured extractor wrapped in a GuardedExtractor.
func NewExtractor(cfg *config.ExtractorConfig, m *metrics.Metrics) (*GuardedExtractor, error) {
	var inner Extractor
	switch cfg.Provider {
	case "remote":
		inner = NewRemoteExtractor(&RemoteExtractorConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case "color", "":
		inner = NewColorExtractor()
	default:
		return nil, fmt.Errorf("unknown extractor provider %q", cfg.Provider)
	}
	return NewGuardedExtractor(inner, &GuardConfig{
		Timeout:        cfg.Timeout,
		MaxConcurrency: cfg.MaxConcurrency,
		CacheTTL:       cfg.CacheTTL,
	}, m), nil
}

// decodeImage decodes any registered format (jpeg, png, gif, webp).
func decodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode image: %v", domain.ErrExtraction, err)
	}
	return img, format, nil
}

// sniffImage validates that data is a decodable image and returns its
// format name. Failure wraps domain.ErrInvalidInput.
func sniffImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: unsupported image: %v", domain.ErrInvalidInput, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return "", fmt.Errorf("%w: image has no pixels", domain.ErrInvalidInput)
	}
	return format, nil
}

func calculateMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}
