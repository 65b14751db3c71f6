package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/fishlens/internal/domain"
)

type stubExtractor struct {
	delay time.Duration
	vec   []float32
	dims  int
	calls atomic.Int32
}

func (s *stubExtractor) Extract(ctx context.Context, data []byte) ([]float32, error) {
	s.calls.Add(1)
	time.Sleep(s.delay) // ignores ctx on purpose
	return s.vec, nil
}

func (s *stubExtractor) Model() string   { return "stub" }
func (s *stubExtractor) Dimensions() int { return s.dims }

func TestColorExtractor_Deterministic(t *testing.T) {
	e := NewColorExtractor()
	ctx := context.Background()
	img := pngImage(t, red, blue)

	a, err := e.Extract(ctx, img)
	require.NoError(t, err)
	b, err := e.Extract(ctx, img)
	require.NoError(t, err)
	assert.Len(t, a, e.Dimensions())
	assert.Equal(t, a, b)

	c, err := e.Extract(ctx, pngImage(t, green, white))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = e.Extract(ctx, []byte("garbage"))
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestGuardedExtractor_Timeout(t *testing.T) {
	inner := &stubExtractor{delay: 300 * time.Millisecond, vec: []float32{1, 2}, dims: 2}
	g := NewGuardedExtractor(inner, &GuardConfig{Timeout: 20 * time.Millisecond, MaxConcurrency: 1}, nil)

	start := time.Now()
	_, err := g.Extract(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

// gatedExtractor blocks every call until gate is closed, ignoring ctx.
type gatedExtractor struct {
	gate  chan struct{}
	calls atomic.Int32
}

func (g *gatedExtractor) Extract(ctx context.Context, data []byte) ([]float32, error) {
	g.calls.Add(1)
	<-g.gate
	return []float32{1, 0}, nil
}

func (g *gatedExtractor) Model() string   { return "gated" }
func (g *gatedExtractor) Dimensions() int { return 2 }

func TestGuardedExtractor_SlotHeldUntilInnerReturns(t *testing.T) {
	inner := &gatedExtractor{gate: make(chan struct{})}
	g := NewGuardedExtractor(inner, &GuardConfig{Timeout: 30 * time.Millisecond, MaxConcurrency: 1}, nil)
	ctx := context.Background()

	_, err := g.Extract(ctx, []byte("a"))
	assert.ErrorIs(t, err, domain.ErrExtraction)

	// The first call is still running, so the second cannot get a slot.
	_, err = g.Extract(ctx, []byte("b"))
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.EqualValues(t, 1, inner.calls.Load())

	close(inner.gate)
	assert.Eventually(t, func() bool {
		_, err := g.Extract(ctx, []byte("c"))
		return err == nil
	}, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestGuardedExtractor_CacheAndDimensionCheck(t *testing.T) {
	inner := &stubExtractor{vec: []float32{1, 2}, dims: 2}
	g := NewGuardedExtractor(inner, &GuardConfig{Timeout: time.Second, MaxConcurrency: 2, CacheTTL: time.Minute}, nil)
	ctx := context.Background()

	v1, err := g.Extract(ctx, []byte("img"))
	require.NoError(t, err)
	v1[0] = 99 // callers own the returned slice
	v2, err := g.Extract(ctx, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v2)
	assert.EqualValues(t, 1, inner.calls.Load())

	bad := &stubExtractor{vec: []float32{1, 2, 3}, dims: 2}
	g = NewGuardedExtractor(bad, &GuardConfig{Timeout: time.Second, MaxConcurrency: 1}, nil)
	_, err = g.Extract(ctx, []byte("img"))
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestRemoteExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Input) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"bad request"}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	e := NewRemoteExtractor(&RemoteExtractorConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "jina-clip-v2", Dimensions: 3})
	vec, err := e.Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)

	unauth := NewRemoteExtractor(&RemoteExtractorConfig{BaseURL: srv.URL + "/v1", Model: "jina-clip-v2"})
	_, err = unauth.Extract(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Contains(t, err.Error(), "unauthorized")
}
