package gradient

import (
	"context"

	"github.com/hupe1980/tsnego/affinity"
)

// Exact evaluates the gradient over all pairs in O(N²) time and memory.
// Normalized similarities are floored at MinQij.
type Exact struct {
	workers int
	u       []float64
}

// Compile time check.
var _ Computer = (*Exact)(nil)

// NewExact creates an exact gradient computer.
func NewExact(workers int) *Exact {
	return &Exact{workers: max(workers, 1)}
}

// Compute implements Computer.
func (e *Exact) Compute(ctx context.Context, p affinity.Matrix, sol, grad [][]float64) (float64, error) {
	n := len(sol)
	if cap(e.u) < n*n {
		e.u = make([]float64, n*n)
	}
	u := e.u[:n*n]

	// Student-t kernel for every pair, summed row by row in order.
	var z float64
	for i := 0; i < n; i++ {
		u[i*n+i] = 0
		for j := i + 1; j < n; j++ {
			v := 1 / (1 + sqDist(sol[i], sol[j]))
			u[i*n+j] = v
			u[j*n+i] = v
			z += 2 * v
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	err := forEach(ctx, n, e.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			yi, g := sol[i], grad[i]
			clear(g)
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				uij := u[i*n+j]
				q := max(uij/z, MinQij)
				a := (p.Get(i, j) - q) * uij
				yj := sol[j]
				for k := range g {
					g[k] += a * (yi[k] - yj[k])
				}
			}
			for k := range g {
				g[k] *= 4
			}
		}
	})
	if err != nil {
		return 0, err
	}
	return z, nil
}

// BruteForceRepulsion computes the exact unnormalized repulsive forces
// Σ_j u_ij²·(y_i - y_j) into rep and returns Z = Σ_{i≠j} u_ij.
func BruteForceRepulsion(sol, rep [][]float64) float64 {
	var z float64
	for i, yi := range sol {
		r := rep[i]
		clear(r)
		for j, yj := range sol {
			if i == j {
				continue
			}
			u := 1 / (1 + sqDist(yi, yj))
			a := u * u
			for k := range r {
				r[k] += a * (yi[k] - yj[k])
			}
			z += u
		}
	}
	return z
}
