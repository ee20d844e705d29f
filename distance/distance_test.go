package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tsnego/model"
)

func TestSquaredEuclidean(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{"Simple", []float64{1, 2, 3}, []float64{4, 5, 6}, 27},
		{"Zero", []float64{0, 0, 0}, []float64{0, 0, 0}, 0},
		{"Identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 0},
		{"Mixed", []float64{1, -1}, []float64{-1, 1}, 8},
		{"Empty", []float64{}, []float64{}, 0},
		{"Unrolled", []float64{1, 1, 1, 1, 1, 1, 1, 1, 1}, make([]float64, 9), 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SquaredEuclidean(tt.a, tt.b), 1e-12)
		})
	}
}

func TestMetrics(t *testing.T) {
	a := []float64{3, 0}
	b := []float64{0, 4}

	assert.InDelta(t, 5, Euclidean(a, b), 1e-12)
	assert.InDelta(t, 7, Manhattan(a, b), 1e-12)
	assert.InDelta(t, 1, Cosine(a, b), 1e-12)
	assert.InDelta(t, 0, Cosine(a, []float64{6, 0}), 1e-12)
	assert.InDelta(t, 0, Cosine([]float64{0, 0}, []float64{0, 0}), 1e-12)
	assert.InDelta(t, 1, Cosine([]float64{0, 0}, b), 1e-12)
}

func TestProvider(t *testing.T) {
	for _, m := range []Metric{MetricSquaredEuclidean, MetricEuclidean, MetricManhattan, MetricCosine} {
		t.Run(m.String(), func(t *testing.T) {
			fn, err := Provider(m)
			require.NoError(t, err)
			require.NotNil(t, fn)

			parsed, err := ParseMetric(m.String())
			require.NoError(t, err)
			assert.Equal(t, m, parsed)
		})
	}

	_, err := Provider(Metric(42))
	assert.Error(t, err)
	assert.Equal(t, "Unknown(42)", Metric(42).String())

	_, err = ParseMetric("chebyshev")
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	rel, err := model.FromVectors([][]float64{{0, 0}, {3, 4}})
	require.NoError(t, err)

	t.Run("vector euclidean", func(t *testing.T) {
		q, err := NewVectorQuery(rel, MetricEuclidean)
		require.NoError(t, err)
		assert.False(t, IsSquared(q))
		assert.InDelta(t, 5, q.Distance(0, 1), 1e-12)
		assert.InDelta(t, 25, SquaredDistance(q, 0, 1), 1e-12)
	})

	t.Run("vector squared", func(t *testing.T) {
		q, err := NewVectorQuery(rel, MetricSquaredEuclidean)
		require.NoError(t, err)
		assert.True(t, IsSquared(q))
		assert.InDelta(t, 25, SquaredDistance(q, 0, 1), 1e-12)
	})

	t.Run("func", func(t *testing.T) {
		q := QueryFunc(func(i, j int) float64 { return math.Abs(float64(i - j)) })
		assert.False(t, IsSquared(q))
		assert.InDelta(t, 4, SquaredDistance(q, 0, 2), 1e-12)
	})

	t.Run("precomputed", func(t *testing.T) {
		vq, err := NewVectorQuery(rel, MetricSquaredEuclidean)
		require.NoError(t, err)
		q, err := Precompute(vq, rel.Len())
		require.NoError(t, err)
		assert.True(t, q.Squared())
		assert.InDelta(t, 25, q.Distance(1, 0), 1e-12)
		assert.InDelta(t, 0, q.Distance(1, 1), 1e-12)
	})
}
