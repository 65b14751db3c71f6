// Package index holds the in-memory descriptor index used by similarity
// queries. It is a cache over the durable catalog and is rebuilt at startup.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrDimensionMismatch is returned when a descriptor's length differs from
// the index dimension.
var ErrDimensionMismatch = errors.New("descriptor dimension mismatch")

// Match is one query result.
type Match struct {
	ID       uint    `json:"id"`
	Distance float64 `json:"distance"`
}

// Memory is an exact brute-force cosine index keyed by catalog entry id.
//
// It is safe for concurrent use. Queries hold the read lock only while
// computing distances; sorting runs on a private slice.
type Memory struct {
	mu      sync.RWMutex
	vectors map[uint][]float32
	dim     int
	ready   atomic.Bool
}

// NewMemory creates an empty index. A dim of zero adopts the length of the
// first inserted descriptor.
func NewMemory(dim int) *Memory {
	return &Memory{
		vectors: make(map[uint][]float32),
		dim:     dim,
	}
}

// Insert adds or replaces the descriptor for id. The slice is copied.
func (m *Memory) Insert(id uint, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty descriptor for id %d: %w", id, ErrDimensionMismatch)
	}
	cp := make([]float32, len(vector))
	copy(cp, vector)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim == 0 {
		m.dim = len(cp)
	} else if len(cp) != m.dim {
		return fmt.Errorf("id %d: got %d, want %d: %w", id, len(cp), m.dim, ErrDimensionMismatch)
	}
	m.vectors[id] = cp
	return nil
}

// Remove deletes id if present.
func (m *Memory) Remove(id uint) {
	m.mu.Lock()
	delete(m.vectors, id)
	m.mu.Unlock()
}

// Query returns the k nearest ids by cosine distance, ascending by distance
// with ties broken by ascending id. k is clamped to Len; k <= 0 yields an
// empty result.
func (m *Memory) Query(query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}

	m.mu.RLock()
	if m.dim != 0 && len(query) != m.dim {
		dim := m.dim
		m.mu.RUnlock()
		return nil, fmt.Errorf("query: got %d, want %d: %w", len(query), dim, ErrDimensionMismatch)
	}
	qNorm := norm(query)
	results := make([]Match, 0, len(m.vectors))
	for id, vec := range m.vectors {
		results = append(results, Match{ID: id, Distance: cosineDistance(query, qNorm, vec)})
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of indexed descriptors.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Contains reports whether id has a descriptor.
func (m *Memory) Contains(id uint) bool {
	m.mu.RLock()
	_, ok := m.vectors[id]
	m.mu.RUnlock()
	return ok
}

// Dimensions returns the fixed descriptor length, or 0 before the first insert.
func (m *Memory) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dim
}

// MarkReady flags startup population as complete.
func (m *Memory) MarkReady() {
	m.ready.Store(true)
}

// Ready reports whether startup population has completed.
func (m *Memory) Ready() bool {
	return m.ready.Load()
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// cosineDistance is 1 - a·b/(|a||b|). A zero-norm operand has no direction
// and yields +Inf so it sorts after every real match.
func cosineDistance(a []float32, aNorm float64, b []float32) float64 {
	if aNorm == 0 {
		return math.Inf(1)
	}
	var dot, bb float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		bb += bi * bi
	}
	if bb == 0 {
		return math.Inf(1)
	}
	sim := dot / (aNorm * math.Sqrt(bb))
	// Clamp floating point drift.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim
}
