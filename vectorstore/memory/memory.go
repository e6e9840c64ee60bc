// Package memory provides an in-process vectorstore.Index using
// brute-force cosine similarity. It backs tests and local runs where no
// Qdrant server is available.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/mfederowicz/bookrec/vectorstore"
)

// Index is a mutex-guarded in-memory vector index.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	dimension int
	points    map[string]vectorstore.Point
}

var _ vectorstore.Index = (*Index)(nil)

// NewIndex creates an empty in-memory index.
func NewIndex() *Index {
	return &Index{
		collections: make(map[string]*collection),
	}
}

// EnsureCollection creates the collection if absent.
func (m *Index) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: %d", vectorstore.ErrInvalidDimension, dimension)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[name]; ok {
		return nil
	}
	m.collections[name] = &collection{
		dimension: dimension,
		points:    make(map[string]vectorstore.Point),
	}
	return nil
}

// CollectionInfo returns collection metadata, or nil when absent.
func (m *Index) CollectionInfo(ctx context.Context, name string) (*vectorstore.CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[name]
	if !ok {
		return nil, nil
	}
	return &vectorstore.CollectionInfo{
		Name:        name,
		Dimension:   col.dimension,
		PointsCount: len(col.points),
	}, nil
}

// UpsertBatch inserts or overwrites points by id.
func (m *Index) UpsertBatch(ctx context.Context, name string, points []vectorstore.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("%w: collection %s does not exist", vectorstore.ErrUnavailable, name)
	}
	for _, p := range points {
		if len(p.Vector) != col.dimension {
			return fmt.Errorf("%w: point %s has dimension %d, collection %d",
				vectorstore.ErrInvalidDimension, p.ID, len(p.Vector), col.dimension)
		}
	}
	for _, p := range points {
		col.points[p.ID] = p
	}
	return nil
}

// Search returns at most limit hits ordered by descending cosine score.
func (m *Index) Search(ctx context.Context, name string, vector []float32, limit int, filter vectorstore.Filter) ([]vectorstore.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[name]
	if !ok {
		return []vectorstore.Hit{}, nil
	}

	hits := make([]vectorstore.Hit, 0, len(col.points))
	for _, p := range col.points {
		if !matches(p.Payload, filter) {
			continue
		}
		hits = append(hits, vectorstore.Hit{
			ID:      p.ID,
			Score:   cosine(vector, p.Vector),
			Payload: p.Payload,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// DeletePoint removes a point by id.
func (m *Index) DeletePoint(ctx context.Context, name string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if col, ok := m.collections[name]; ok {
		delete(col.points, id)
	}
	return nil
}

// DeleteCollection removes a collection.
func (m *Index) DeleteCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections, name)
	return nil
}

func matches(payload map[string]any, filter vectorstore.Filter) bool {
	for key, want := range filter {
		if payload[key] != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}
