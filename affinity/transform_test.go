package affinity

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHillEstimate(t *testing.T) {
	id, ok := HillEstimate([]float64{math.Exp(-1), 1})
	require.True(t, ok)
	assert.InDelta(t, 1, id, 1e-12)

	id, ok = HillEstimate([]float64{math.Exp(-0.5), math.Exp(-0.25), 1})
	require.True(t, ok)
	assert.InDelta(t, 2/0.75, id, 1e-12)

	_, ok = HillEstimate([]float64{1, 1, 1})
	assert.False(t, ok)
	_, ok = HillEstimate([]float64{0, 0})
	assert.False(t, ok)
	_, ok = HillEstimate(nil)
	assert.False(t, ok)
}

func TestIntrinsicDimensionality(t *testing.T) {
	dist := []float64{math.Exp(-2), 1} // radii e^-1 and 1, ID 1
	IntrinsicDimensionality{}.Transform(dist)
	assert.InDelta(t, math.Exp(-1), dist[0], 1e-12)
	assert.InDelta(t, 1, dist[1], 1e-12)

	flat := []float64{4, 4, 4}
	IntrinsicDimensionality{}.Transform(flat)
	assert.Equal(t, []float64{4, 4, 4}, flat)
}

func TestBuilderWithTransform(t *testing.T) {
	q := blobs(t, 40, 6, 6)
	b, err := NewNeighborBuilder(nil, func(o *Options) {
		o.Perplexity = 4
		o.Transform = IntrinsicDimensionality{}
	})
	require.NoError(t, err)

	m, _, err := b.Build(context.Background(), 40, q)
	require.NoError(t, err)
	assertAffinityInvariants(t, m, DefaultExaggeration)

	calls := 0
	pb, err := NewPerplexityBuilder(func(o *Options) {
		o.Perplexity = 4
		o.Transform = TransformFunc(func(dist []float64) { calls++ })
	})
	require.NoError(t, err)
	_, _, err = pb.Build(context.Background(), 40, q)
	require.NoError(t, err)
	assert.Equal(t, 40, calls)
}
