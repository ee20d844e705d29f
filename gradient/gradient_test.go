package gradient

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tsnego/affinity"
)

func randomSolution(n, dim int, scale float64, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	sol := make([][]float64, n)
	for i := range sol {
		y := make([]float64, dim)
		for k := range y {
			y[k] = rng.NormFloat64() * scale
		}
		sol[i] = y
	}
	return sol
}

func rows(n, dim int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dim)
	}
	return out
}

// randomAffinity returns a dense matrix whose entries sum to 1.
func randomAffinity(n int, seed int64) *affinity.Dense {
	rng := rand.New(rand.NewSource(seed))
	m := affinity.NewDense(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			m.Set(i, j, rng.Float64())
		}
	}
	m.Scale(1 / m.Sum())
	return m
}

func TestBarnesHutExactAtThetaZero(t *testing.T) {
	for _, dim := range []int{1, 2, 3} {
		for _, capacity := range []int{1, 10} {
			t.Run(fmt.Sprintf("dim=%d/capacity=%d", dim, capacity), func(t *testing.T) {
				sol := randomSolution(200, dim, 5, int64(dim+capacity))
				want := rows(200, dim)
				got := rows(200, dim)

				zWant := BruteForceRepulsion(sol, want)
				zGot := NewBarnesHut(0, capacity, 1).Repulsion(sol, got)

				assert.InDelta(t, zWant, zGot, 1e-9*zWant)
				for i := range sol {
					assert.InDeltaSlice(t, want[i], got[i], 1e-10)
				}
			})
		}
	}
}

func TestBarnesHutApproximation(t *testing.T) {
	sol := randomSolution(500, 2, 10, 7)
	want := rows(500, 2)
	got := rows(500, 2)

	zWant := BruteForceRepulsion(sol, want)
	bh := NewBarnesHut(DefaultTheta, 0, 1)
	zGot := bh.Repulsion(sol, got)

	assert.InDelta(t, 1, zGot/zWant, 0.05)
	assert.Positive(t, bh.Stats().Nodes)
	// The approximation must evaluate fewer interactions than all pairs.
	assert.Less(t, bh.Stats().Interactions, int64(500*500))
}

func TestComputeMatchesExact(t *testing.T) {
	ctx := context.Background()
	p := randomAffinity(40, 1)
	sol := randomSolution(40, 2, 1, 2)

	bhGrad := rows(40, 2)
	exGrad := rows(40, 2)
	zBH, err := NewBarnesHut(0, 1, 1).Compute(ctx, p, sol, bhGrad)
	require.NoError(t, err)
	zEx, err := NewExact(1).Compute(ctx, p, sol, exGrad)
	require.NoError(t, err)

	assert.InDelta(t, zEx, zBH, 1e-9*zEx)
	for i := range sol {
		assert.InDeltaSlice(t, exGrad[i], bhGrad[i], 1e-9)
	}
}

// kl returns the Kullback-Leibler divergence between p and the t-SNE
// similarities of sol.
func kl(p affinity.Matrix, sol [][]float64) float64 {
	n := len(sol)
	var z float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				z += 1 / (1 + sqDist(sol[i], sol[j]))
			}
		}
	}
	var c float64
	for i := 0; i < n; i++ {
		for j, pij := range p.Row(i) {
			q := 1 / (1 + sqDist(sol[i], sol[j])) / z
			c += pij * math.Log(pij/q)
		}
	}
	return c
}

func TestExactGradientIsCostDerivative(t *testing.T) {
	p := randomAffinity(12, 3)
	sol := randomSolution(12, 2, 1, 4)
	grad := rows(12, 2)
	_, err := NewExact(1).Compute(context.Background(), p, sol, grad)
	require.NoError(t, err)

	const h = 1e-6
	for _, i := range []int{0, 5, 11} {
		for k := 0; k < 2; k++ {
			orig := sol[i][k]
			sol[i][k] = orig + h
			up := kl(p, sol)
			sol[i][k] = orig - h
			down := kl(p, sol)
			sol[i][k] = orig
			assert.InDelta(t, (up-down)/(2*h), grad[i][k], 1e-5)
		}
	}
}

func TestComputeIsIndependentOfWorkers(t *testing.T) {
	ctx := context.Background()
	p := randomAffinity(300, 5)
	sol := randomSolution(300, 2, 3, 6)

	for name, newComputer := range map[string]func(workers int) Computer{
		"barnes-hut": func(w int) Computer { return NewBarnesHut(DefaultTheta, 0, w) },
		"exact":      func(w int) Computer { return NewExact(w) },
	} {
		t.Run(name, func(t *testing.T) {
			seq := rows(300, 2)
			par := rows(300, 2)
			z1, err := newComputer(1).Compute(ctx, p, sol, seq)
			require.NoError(t, err)
			z2, err := newComputer(4).Compute(ctx, p, sol, par)
			require.NoError(t, err)

			assert.Equal(t, z1, z2)
			assert.Equal(t, seq, par)
		})
	}
}

func TestComputeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := randomAffinity(10, 7)
	sol := randomSolution(10, 2, 1, 8)

	_, err := NewBarnesHut(DefaultTheta, 0, 1).Compute(ctx, p, sol, rows(10, 2))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewExact(1).Compute(ctx, p, sol, rows(10, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeSinglePoint(t *testing.T) {
	p := affinity.NewDense(1)
	grad := rows(1, 2)
	z, err := NewBarnesHut(DefaultTheta, 0, 1).Compute(context.Background(), p, [][]float64{{1, 2}}, grad)
	require.NoError(t, err)
	assert.Zero(t, z)
	assert.Equal(t, []float64{0, 0}, grad[0])
}

func BenchmarkBarnesHut(b *testing.B) {
	p := randomAffinity(2000, 9)
	sol := randomSolution(2000, 2, 10, 10)
	grad := rows(2000, 2)
	bh := NewBarnesHut(DefaultTheta, 0, 1)
	ctx := context.Background()
	for b.Loop() {
		_, _ = bh.Compute(ctx, p, sol, grad)
	}
}
