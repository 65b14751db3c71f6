package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/timmy/fishlens/internal/domain"
	"github.com/timmy/fishlens/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// GuardConfig bounds calls into an underlying extractor.
type GuardConfig struct {
	Timeout        time.Duration
	MaxConcurrency int
	CacheTTL       time.Duration
}

// GuardedExtractor wraps an Extractor with a per-call timeout, a bound on
// concurrent model calls, a descriptor length check and a TTL cache keyed by
// the image MD5.
type GuardedExtractor struct {
	inner   Extractor
	timeout time.Duration
	sem     *semaphore.Weighted
	cache   *cache.Cache
	metrics *metrics.Metrics
}

// NewGuardedExtractor creates a GuardedExtractor. A zero CacheTTL disables caching.
func NewGuardedExtractor(inner Extractor, cfg *GuardConfig, m *metrics.Metrics) *GuardedExtractor {
	limit := int64(cfg.MaxConcurrency)
	if limit <= 0 {
		limit = 1
	}
	g := &GuardedExtractor{
		inner:   inner,
		timeout: cfg.Timeout,
		sem:     semaphore.NewWeighted(limit),
		metrics: m,
	}
	if cfg.CacheTTL > 0 {
		g.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return g
}

func (g *GuardedExtractor) Model() string   { return g.inner.Model() }
func (g *GuardedExtractor) Dimensions() int { return g.inner.Dimensions() }

type extraction struct {
	vec []float32
	err error
}

// Extract returns the descriptor for imageData. Every failure, including a
// timeout, wraps domain.ErrExtraction; nothing is cached on failure.
func (g *GuardedExtractor) Extract(ctx context.Context, imageData []byte) ([]float32, error) {
	key := calculateMD5(imageData)
	if g.cache != nil {
		if v, ok := g.cache.Get(key); ok {
			g.metrics.CacheHit(true)
			return cloneVector(v.([]float32)), nil
		}
		g.metrics.CacheHit(false)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, g.fail(ctx, start)
	}

	// The call runs in its own goroutine so the deadline holds even for
	// extractors that never look at ctx. The slot is held until the inner
	// call returns, not until the caller gives up.
	done := make(chan extraction, 1)
	go func() {
		defer g.sem.Release(1)
		vec, err := g.inner.Extract(ctx, imageData)
		done <- extraction{vec: vec, err: err}
	}()

	var res extraction
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, g.fail(ctx, start)
	}

	if res.err != nil {
		g.metrics.ObserveExtraction("error", time.Since(start))
		if errors.Is(res.err, domain.ErrExtraction) {
			return nil, res.err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, res.err)
	}
	if want := g.inner.Dimensions(); want > 0 && len(res.vec) != want {
		g.metrics.ObserveExtraction("error", time.Since(start))
		return nil, fmt.Errorf("%w: descriptor length %d, want %d", domain.ErrExtraction, len(res.vec), want)
	}

	g.metrics.ObserveExtraction("ok", time.Since(start))
	if g.cache != nil {
		g.cache.SetDefault(key, cloneVector(res.vec))
	}
	return res.vec, nil
}

func (g *GuardedExtractor) fail(ctx context.Context, start time.Time) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		g.metrics.ObserveExtraction("timeout", time.Since(start))
		return fmt.Errorf("%w: timed out after %s", domain.ErrExtraction, g.timeout)
	}
	g.metrics.ObserveExtraction("error", time.Since(start))
	return fmt.Errorf("%w: %w", domain.ErrExtraction, ctx.Err())
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
