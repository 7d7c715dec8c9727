// Package similarity answers nearest-neighbour queries over the catalog
// feature matrix.
package similarity

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/pkg/logger"
)

// ErrNoEmbedding means the seed has no usable vector, either because no
// matrix is loaded or because its row is all zeros.
var ErrNoEmbedding = errors.New("no embedding for seed")

// OverSelect is the raw candidate count to request when a filter will be
// applied afterwards: max(k*factor, min).
func OverSelect(k, factor, min int) int {
	if n := k * factor; n > min {
		return n
	}
	return min
}

// Engine ranks catalog rows by cosine similarity to a seed row.
type Engine struct {
	store  *catalog.Store
	logger *logger.Logger
}

// NewEngine creates a similarity engine over store
func NewEngine(store *catalog.Store, log *logger.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: log.WithComponent("similarity-engine"),
	}
}

// Nearest returns up to k rows most similar to seed, best first, ties by
// ascending row. The seed is never returned. When mask is non-nil only rows
// it accepts are ranked.
func (e *Engine) Nearest(ctx context.Context, seed, k int, mask catalog.Predicate) ([]catalog.Scored, error) {
	m := e.store.Vectors()
	if m == nil {
		return nil, ErrNoEmbedding
	}
	if seed < 0 || seed >= m.Rows() {
		return nil, fmt.Errorf("%w: seed row %d", catalog.ErrNotFound, seed)
	}
	if m.IsZero(seed) {
		return nil, fmt.Errorf("%w: seed row %d has a zero vector", ErrNoEmbedding, seed)
	}
	if k <= 0 {
		return []catalog.Scored{}, nil
	}

	scores := make([]float32, m.Rows())
	m.DotAll(seed, scores)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	top := make(topK, 0, k+1)
	for row, s := range scores {
		if row == seed {
			continue
		}
		if mask != nil && !mask(e.store.Item(row)) {
			continue
		}
		cand := catalog.Scored{Row: row, Score: clamp(float64(s))}
		if len(top) < k {
			heap.Push(&top, cand)
			continue
		}
		if better(cand, top[0]) {
			top[0] = cand
			heap.Fix(&top, 0)
		}
	}

	out := []catalog.Scored(top)
	sort.Slice(out, func(a, b int) bool { return better(out[a], out[b]) })
	return out, nil
}

func clamp(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// better orders by score descending, then row ascending.
func better(a, b catalog.Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Row < b.Row
}

// topK is a min-heap whose root is the worst kept candidate.
type topK []catalog.Scored

func (h topK) Len() int           { return len(h) }
func (h topK) Less(i, j int) bool { return better(h[j], h[i]) }
func (h topK) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *topK) Push(x any)        { *h = append(*h, x.(catalog.Scored)) }
func (h *topK) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
