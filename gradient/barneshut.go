package gradient

import (
	"context"

	"github.com/hupe1980/tsnego/affinity"
	"github.com/hupe1980/tsnego/quadtree"
)

// DefaultTheta is the default Barnes-Hut opening angle.
const DefaultTheta = 0.5

// BarnesHut approximates the repulsive forces with a quadtree that is
// rebuilt on every call. A node is treated as a single pseudo-point when it
// holds one point or when squareSize/d² < θ². θ = 0 yields the exact result.
//
// A BarnesHut value reuses its buffers and must not be used by concurrent
// Compute calls.
type BarnesHut struct {
	theta    float64
	capacity int
	workers  int

	builder *quadtree.Builder
	dim     int
	zs      []float64
	evals   []int64
	rep     []float64
	stats   Stats
}

// Compile time check.
var _ Computer = (*BarnesHut)(nil)

// NewBarnesHut creates a Barnes-Hut gradient computer.
// A leafCapacity below 1 selects quadtree.DefaultLeafCapacity and
// workers below 1 mean sequential evaluation.
func NewBarnesHut(theta float64, leafCapacity, workers int) *BarnesHut {
	return &BarnesHut{theta: theta, capacity: leafCapacity, workers: max(workers, 1)}
}

// Theta returns the opening angle.
func (bh *BarnesHut) Theta() float64 { return bh.theta }

// Stats returns statistics of the last Compute or Repulsion call.
func (bh *BarnesHut) Stats() Stats { return bh.stats }

func (bh *BarnesHut) prepare(sol [][]float64) *quadtree.Tree {
	n := len(sol)
	dim := 0
	if n > 0 {
		dim = len(sol[0])
	}
	if bh.builder == nil || bh.dim != dim {
		bh.builder = quadtree.NewBuilder(dim, bh.capacity)
		bh.dim = dim
	}
	if cap(bh.zs) < n {
		bh.zs = make([]float64, n)
		bh.evals = make([]int64, n)
		bh.rep = make([]float64, n*dim)
	}
	bh.zs = bh.zs[:n]
	bh.evals = bh.evals[:n]
	bh.rep = bh.rep[:n*dim]
	clear(bh.rep)
	clear(bh.evals)
	tree := bh.builder.Build(sol)
	bh.stats = Stats{Nodes: len(tree.Nodes)}
	return tree
}

// Compute implements Computer.
func (bh *BarnesHut) Compute(ctx context.Context, p affinity.Matrix, sol, grad [][]float64) (float64, error) {
	n := len(sol)
	tree := bh.prepare(sol)
	sqTheta := bh.theta * bh.theta
	dim := bh.dim

	err := forEach(ctx, n, bh.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			rep := bh.rep[i*dim : (i+1)*dim]
			bh.zs[i] = repulse(tree, 0, sol[i], rep, sqTheta, &bh.evals[i])
			g := grad[i]
			clear(g)
			attraction(p, sol, i, g)
		}
	})
	if err != nil {
		return 0, err
	}

	z := bh.normalizer()
	// A single point has no pair to normalize over.
	s := 0.0
	if z > 0 {
		s = 1 / z
	}
	for i := 0; i < n; i++ {
		g := grad[i]
		rep := bh.rep[i*dim : (i+1)*dim]
		for k := range g {
			g[k] = 4 * (g[k] - rep[k]*s)
		}
	}
	return z, nil
}

// Repulsion computes only the unnormalized repulsive forces Σ_j u_ij²·(y_i - y_j)
// into rep and returns Z.
func (bh *BarnesHut) Repulsion(sol, rep [][]float64) float64 {
	tree := bh.prepare(sol)
	sqTheta := bh.theta * bh.theta
	for i := range sol {
		clear(rep[i])
		bh.zs[i] = repulse(tree, 0, sol[i], rep[i], sqTheta, &bh.evals[i])
	}
	return bh.normalizer()
}

// normalizer sums the per-item contributions in item order, so the result
// does not depend on the number of workers, and removes the self terms.
func (bh *BarnesHut) normalizer() float64 {
	var z float64
	var evals int64
	for i, zi := range bh.zs {
		z += zi
		evals += bh.evals[i]
	}
	bh.stats.Interactions = evals
	return z - float64(len(bh.zs))
}

// repulse accumulates the repulsive force on yi from the subtree id into
// rep and returns the subtree's contribution to Z.
func repulse(t *quadtree.Tree, id int32, yi, rep []float64, sqTheta float64, evals *int64) float64 {
	nd := t.Node(id)
	d := sqDist(yi, nd.Center)
	*evals++
	if nd.Weight == 1 || nd.SquareSize/d < sqTheta {
		u := 1 / (1 + d)
		z := float64(nd.Weight) * u
		a := z * u
		for k := range rep {
			rep[k] += a * (yi[k] - nd.Center[k])
		}
		return z
	}
	var z float64
	for _, pt := range nd.Points {
		u := 1 / (1 + sqDist(yi, pt))
		a := u * u
		for k := range rep {
			rep[k] += a * (yi[k] - pt[k])
		}
		z += u
	}
	*evals += int64(len(nd.Points))
	for _, c := range nd.Children {
		z += repulse(t, c, yi, rep, sqTheta, evals)
	}
	return z
}
