// Package knn provides k-nearest-neighbor search over the offsets of a relation.
//
// The sparse affinity builder only needs the k closest items of every item.
// Searcher is the seam where an approximate index can be plugged in; Flat is
// the exact brute-force default.
package knn

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tsnego/distance"
	"github.com/hupe1980/tsnego/internal/queue"
	"github.com/hupe1980/tsnego/model"
)

var (
	// ErrInvalidK is returned when k is negative.
	ErrInvalidK = errors.New("k must not be negative")

	// ErrOffsetOutOfRange is returned for a query offset outside the relation.
	ErrOffsetOutOfRange = errors.New("offset out of range")
)

// Searcher returns the k nearest neighbors of the item at offset, excluding
// the item itself, sorted by ascending distance.
// Implementations must be safe for concurrent use.
type Searcher interface {
	Search(ctx context.Context, offset, k int) ([]model.Neighbor, error)
}

// Flat is an exact brute-force Searcher over a distance query.
type Flat struct {
	q distance.Query
	n int
}

// Compile time check.
var _ Searcher = (*Flat)(nil)

// NewFlat creates a brute-force searcher over the first n offsets of q.
func NewFlat(q distance.Query, n int) *Flat {
	return &Flat{q: q, n: n}
}

// Search implements Searcher.
func (f *Flat) Search(ctx context.Context, offset, k int) ([]model.Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k < 0 {
		return nil, ErrInvalidK
	}
	if offset < 0 || offset >= f.n {
		return nil, fmt.Errorf("%w: %d", ErrOffsetOutOfRange, offset)
	}
	if k > f.n-1 {
		k = f.n - 1
	}
	if k == 0 {
		return nil, nil
	}

	top := queue.NewMax(k)
	for j := 0; j < f.n; j++ {
		if j == offset {
			continue
		}
		top.PushBounded(queue.Item{Offset: j, Distance: f.q.Distance(offset, j)}, k)
	}

	res := make([]model.Neighbor, top.Len())
	for i := len(res) - 1; i >= 0; i-- {
		it, _ := top.Pop()
		res[i] = model.Neighbor{Offset: it.Offset, Distance: it.Distance}
	}
	return res, nil
}

// SearchAll runs s for every offset in [0, n) using up to workers goroutines.
// The result is indexed by offset and independent of the worker count.
func SearchAll(ctx context.Context, s Searcher, n, k, workers int) ([][]model.Neighbor, error) {
	if workers < 1 {
		workers = 1
	}
	out := make([][]model.Neighbor, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := s.Search(gctx, i, k)
			if err != nil {
				return fmt.Errorf("knn: offset %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
