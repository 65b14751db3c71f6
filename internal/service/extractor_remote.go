package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/fishlens/internal/domain"
)

// RemoteExtractorConfig holds configuration for an embeddings endpoint.
type RemoteExtractorConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// RemoteExtractor obtains image descriptors from a Jina-compatible
// /embeddings endpoint (for example jina-clip-v2).
type RemoteExtractor struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// NewRemoteExtractor creates a new remote extractor.
func NewRemoteExtractor(cfg *RemoteExtractorConfig) *RemoteExtractor {
	client := resty.New()
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	client.SetHeader("Content-Type", "application/json")

	return &RemoteExtractor{
		client:     client,
		endpoint:   strings.TrimSuffix(cfg.BaseURL, "/") + "/embeddings",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (e *RemoteExtractor) Model() string   { return e.model }
func (e *RemoteExtractor) Dimensions() int { return e.dimensions }

type embeddingImageInput struct {
	Image string `json:"image"`
}

type embeddingRequest struct {
	Model      string                `json:"model"`
	Dimensions int                   `json:"dimensions,omitempty"`
	Normalized bool                  `json:"normalized"`
	Input      []embeddingImageInput `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// Extract posts the base64 encoded image and returns its embedding.
func (e *RemoteExtractor) Extract(ctx context.Context, imageData []byte) ([]float32, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrExtraction)
	}

	req := embeddingRequest{
		Model:      e.model,
		Dimensions: e.dimensions,
		Normalized: true,
		Input:      []embeddingImageInput{{Image: base64.StdEncoding.EncodeToString(imageData)}},
	}

	var resp embeddingResponse
	httpResp, err := e.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(e.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: call embeddings API: %v", domain.ErrExtraction, err)
	}

	if httpResp.StatusCode() != http.StatusOK {
		if resp.Detail != "" {
			return nil, fmt.Errorf("%w: embeddings API: %s", domain.ErrExtraction, resp.Detail)
		}
		return nil, fmt.Errorf("%w: embeddings API status %d", domain.ErrExtraction, httpResp.StatusCode())
	}

	if len(resp.Data) != 1 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: embeddings API returned %d results", domain.ErrExtraction, len(resp.Data))
	}
	return resp.Data[0].Embedding, nil
}
