package affinity

import "math"

// DistanceTransform rescales one row of squared distances in place before
// the bandwidth search. Implementations must be safe for concurrent use.
type DistanceTransform interface {
	Transform(dist []float64)
}

// TransformFunc adapts a function to the DistanceTransform interface.
type TransformFunc func(dist []float64)

// Transform implements DistanceTransform.
func (f TransformFunc) Transform(dist []float64) { f(dist) }

// IntrinsicDimensionality adapts affinities to the local intrinsic
// dimensionality of each row.
//
// The dimensionality ID is estimated with the Hill maximum likelihood
// estimator over the row's radii r_j. Distances are then replaced by
// (r_j / r_max)^ID, which makes rows from dense and sparse regions comparable.
// Rows without a usable estimate are left unchanged.
type IntrinsicDimensionality struct{}

// Transform implements DistanceTransform.
func (IntrinsicDimensionality) Transform(dist []float64) {
	r := make([]float64, len(dist))
	rmax := 0.0
	for j, d := range dist {
		r[j] = math.Sqrt(d)
		if !math.IsInf(r[j], 1) {
			rmax = max(rmax, r[j])
		}
	}
	id, ok := HillEstimate(r)
	if !ok {
		return
	}
	for j := range dist {
		dist[j] = math.Pow(r[j]/rmax, id)
	}
}

// HillEstimate returns the Hill estimate of the intrinsic dimensionality
// from neighbor radii, -m / Σ ln(r_j / r_max) over the m positive radii
// besides the maximum. It reports false if there are fewer than two positive
// radii or all of them are equal.
func HillEstimate(r []float64) (float64, bool) {
	rmax := 0.0
	for _, v := range r {
		if !math.IsInf(v, 1) {
			rmax = max(rmax, v)
		}
	}
	if !(rmax > 0) {
		return 0, false
	}
	var sum float64
	m := -1 // the maximum itself contributes a zero term
	for _, v := range r {
		if v > 0 && v <= rmax {
			sum += math.Log(v / rmax)
			m++
		}
	}
	if m < 1 || !(sum < 0) {
		return 0, false
	}
	return -float64(m) / sum, true
}
