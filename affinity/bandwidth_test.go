package affinity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func syntheticRow(n int) []float64 {
	dist := make([]float64, n)
	for j := range dist {
		d := float64(j+1) * 0.37
		dist[j] = d * d
	}
	return dist
}

func TestEntropy(t *testing.T) {
	dist := syntheticRow(20)
	p := make([]float64, len(dist))

	h := Entropy(dist, p, 0.8)
	assert.InDelta(t, 1, floats.Sum(p), 1e-12)
	assert.InDelta(t, stat.Entropy(p), h, 1e-9)

	assert.True(t, math.IsInf(Entropy(dist, p, math.Inf(1)), -1))
	assert.True(t, math.IsInf(Entropy(dist, p, math.NaN()), -1))
}

func TestInitialBeta(t *testing.T) {
	assert.InDelta(t, .5*5*4/10.0, InitialBeta([]float64{1, 2, 3, 4}, 5), 1e-12)
	assert.True(t, math.IsInf(InitialBeta([]float64{0, 0, 0}, 5), 1))
	assert.InDelta(t, .5*2*2/3.0, InitialBeta([]float64{3, math.Inf(1)}, 2), 1e-12)
}

func TestBandwidthSearchConverges(t *testing.T) {
	tests := []struct {
		name       string
		perplexity float64
		tolerance  float64
		maxIter    int
	}{
		{"dense defaults", 10, 1e-5, 50},
		{"sparse defaults", 5, 1e-4, 25},
		{"low perplexity", 1.5, 1e-5, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist := syntheticRow(60)
			p := make([]float64, len(dist))
			s := BandwidthSearch{Perplexity: tt.perplexity, Tolerance: tt.tolerance, MaxIter: tt.maxIter}

			bw := s.Fit(dist, p)
			require.False(t, bw.Degenerate)
			if bw.Converged {
				assert.InDelta(t, tt.perplexity, math.Exp(bw.Entropy), 2*tt.tolerance*tt.perplexity)
			} else {
				assert.Equal(t, tt.maxIter, bw.Iterations)
			}
			assert.InDelta(t, 1, floats.Sum(p), 1e-12)
			assert.Greater(t, bw.Beta, 0.0)
			assert.InDelta(t, stat.Entropy(p), bw.Entropy, 1e-9)
		})
	}
}

func TestBandwidthSearchDegenerateRow(t *testing.T) {
	dist := make([]float64, 8)
	p := make([]float64, len(dist))
	s := BandwidthSearch{Perplexity: 3, Tolerance: 1e-5, MaxIter: 50}

	bw := s.Fit(dist, p)
	assert.True(t, bw.Degenerate)
	assert.False(t, bw.Converged)
	assert.Equal(t, 50, bw.Iterations)
	for _, v := range p {
		assert.InDelta(t, 1.0/8, v, 1e-15)
	}
}

func TestBandwidthSearchBudget(t *testing.T) {
	dist := syntheticRow(10)
	p := make([]float64, len(dist))
	bw := BandwidthSearch{Perplexity: 4, Tolerance: 0, MaxIter: 3}.Fit(dist, p)
	assert.LessOrEqual(t, bw.Iterations, 3)
	assert.False(t, bw.Degenerate)

	bw = BandwidthSearch{Perplexity: 4, Tolerance: 1e-5, MaxIter: 0}.Fit(nil, nil)
	assert.True(t, bw.Converged)
}
