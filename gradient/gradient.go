// Package gradient computes the t-SNE cost gradient for the current embedding.
//
// The gradient of item i is
//
//	4 · (Σ_j p_ij·u_ij·(y_i - y_j) - Σ_j u_ij²·(y_i - y_j) / Z)
//
// with u_ij = 1/(1 + |y_i - y_j|²) and Z = Σ_{k≠l} u_kl. The first term
// attracts affine items and only needs the stored affinities. The second
// term repels all pairs; BarnesHut approximates it with a quadtree while
// Exact evaluates it pairwise.
package gradient

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tsnego/affinity"
)

// MinQij is the floor applied to normalized low-dimensional similarities
// by the exact gradient.
const MinQij = 1e-12

// Computer fills grad with the gradient for the embedding sol and returns
// the normalizer Z. grad and sol have one row of equal length per item.
type Computer interface {
	Compute(ctx context.Context, p affinity.Matrix, sol, grad [][]float64) (float64, error)
}

// Stats describes the work of the last Compute call.
type Stats struct {
	// Nodes is the number of tree nodes built.
	Nodes int
	// Interactions is the number of point or pseudo-point interactions
	// evaluated for the repulsive term.
	Interactions int64
}

// attraction adds Σ_j p_ij·u_ij·(y_i - y_j) for row i to acc.
func attraction(p affinity.Matrix, sol [][]float64, i int, acc []float64) {
	yi := sol[i]
	for j, pij := range p.Row(i) {
		yj := sol[j]
		a := pij / (1 + sqDist(yi, yj))
		for k := range acc {
			acc[k] += a * (yi[k] - yj[k])
		}
	}
}

// forEach runs fn over [0, n) in contiguous chunks on up to workers goroutines.
func forEach(ctx context.Context, n, workers int, fn func(lo, hi int)) error {
	if workers <= 1 || n < 2*workers {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(0, n)
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(lo, hi)
			return nil
		})
	}
	return g.Wait()
}

func sqDist(a, b []float64) float64 {
	switch len(a) {
	case 2:
		d0, d1 := a[0]-b[0], a[1]-b[1]
		return d0*d0 + d1*d1
	case 3:
		d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
		return d0*d0 + d1*d1 + d2*d2
	}
	var s float64
	for k := range a {
		d := a[k] - b[k]
		s += d * d
	}
	return s
}
