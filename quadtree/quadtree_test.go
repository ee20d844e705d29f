package quadtree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPoints(n, dim int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	pts := make([][]float64, n)
	for i := range pts {
		p := make([]float64, dim)
		for d := range p {
			p[d] = rng.NormFloat64()
		}
		pts[i] = p
	}
	return pts
}

// collect returns how often each point (by identity) is stored in the tree.
func collect(t *Tree) map[*float64]int {
	seen := make(map[*float64]int)
	for i := range t.Nodes {
		for _, p := range t.Nodes[i].Points {
			seen[&p[0]]++
		}
	}
	return seen
}

func TestBuildWeightInvariant(t *testing.T) {
	for _, dim := range []int{1, 2, 3, 5} {
		for _, capacity := range []int{1, 4, DefaultLeafCapacity} {
			t.Run(fmt.Sprintf("dim=%d/capacity=%d", dim, capacity), func(t *testing.T) {
				pts := randomPoints(300, dim, int64(dim*100+capacity))
				tree := Build(dim, pts, capacity)

				require.NoError(t, tree.Validate(len(pts)))
				seen := collect(tree)
				assert.Len(t, seen, len(pts))
				for _, p := range pts {
					assert.Equal(t, 1, seen[&p[0]])
				}
			})
		}
	}
}

func TestBuildKeepsInputOrder(t *testing.T) {
	pts := randomPoints(100, 2, 1)
	orig := append([][]float64(nil), pts...)
	Build(2, pts, 1)
	for i := range pts {
		assert.Same(t, &orig[i][0], &pts[i][0])
	}
}

func TestRootCenterOfMass(t *testing.T) {
	pts := [][]float64{{0, 0}, {2, 0}, {0, 4}, {2, 4}}
	tree := Build(2, pts, 1)
	root := tree.Root()
	assert.Equal(t, 4, root.Weight)
	assert.InDeltaSlice(t, []float64{1, 2}, root.Center, 1e-12)
	assert.InDelta(t, 4+16, root.SquareSize, 1e-12)
	// One split per axis isolates all four corners.
	assert.Len(t, root.Points, 4)
	assert.True(t, root.IsLeaf())
}

func TestSmallInputIsSingleLeaf(t *testing.T) {
	pts := randomPoints(4, 2, 2)
	tree := Build(2, pts, DefaultLeafCapacity)
	require.Len(t, tree.Nodes, 1)
	assert.Len(t, tree.Root().Points, 4)
	assert.NoError(t, tree.Validate(4))
}

func TestDuplicatePoints(t *testing.T) {
	pts := make([][]float64, 50)
	for i := range pts {
		pts[i] = []float64{1, 1}
	}
	tree := Build(2, pts, 1)
	require.NoError(t, tree.Validate(50))
	root := tree.Root()
	assert.True(t, root.IsLeaf())
	assert.Len(t, root.Points, 50)
	assert.Zero(t, root.SquareSize)
}

func TestConstantTrailingAxis(t *testing.T) {
	// The second axis is constant, so every split ends on the first axis.
	pts := make([][]float64, 40)
	for i := range pts {
		pts[i] = []float64{float64(i % 8), 3}
	}
	tree := Build(2, pts, 2)
	require.NoError(t, tree.Validate(40))
	assert.Len(t, collect(tree), 40)
}

func TestEmptyAndSingle(t *testing.T) {
	tree := Build(3, nil, 1)
	require.NoError(t, tree.Validate(0))
	assert.Len(t, tree.Root().Center, 3)

	tree = Build(3, [][]float64{{1, 2, 3}}, 1)
	require.NoError(t, tree.Validate(1))
	assert.Equal(t, []float64{1, 2, 3}, tree.Root().Center)
}

func TestBuilderReuse(t *testing.T) {
	b := NewBuilder(2, 3)
	first := b.Build(randomPoints(200, 2, 3))
	require.NoError(t, first.Validate(200))

	second := b.Build(randomPoints(20, 2, 4))
	require.NoError(t, second.Validate(20))
}

func TestValidateDetectsMismatch(t *testing.T) {
	tree := Build(2, randomPoints(30, 2, 5), 2)
	tree.Nodes[0].Weight++
	assert.ErrorIs(t, tree.Validate(30), ErrWeightMismatch)
	assert.ErrorIs(t, (&Tree{}).Validate(0), ErrWeightMismatch)
}

func TestPartition(t *testing.T) {
	data := [][]float64{{5}, {1}, {4}, {2}, {3}, {0}}
	l := partition(data, 0, len(data), 0, 2.5)
	assert.Equal(t, 3, l)
	for _, p := range data[:l] {
		assert.LessOrEqual(t, p[0], 2.5)
	}
	for _, p := range data[l:] {
		assert.GreaterOrEqual(t, p[0], 2.5)
	}
}

func BenchmarkBuild(b *testing.B) {
	pts := randomPoints(10000, 2, 6)
	builder := NewBuilder(2, DefaultLeafCapacity)
	for b.Loop() {
		builder.Build(pts)
	}
}
