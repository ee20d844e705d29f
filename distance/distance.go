package distance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// SquaredEuclidean calculates the squared Euclidean distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredEuclidean(a, b []float64) float64 {
	b = b[:len(a)]
	var s0, s1, s2, s3 float64
	i := 0
	for ; i+4 <= len(a); i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < len(a); i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return (s0 + s1) + (s2 + s3)
}

// Euclidean calculates the Euclidean distance between two vectors.
func Euclidean(a, b []float64) float64 {
	return math.Sqrt(SquaredEuclidean(a, b))
}

// Manhattan calculates the L1 distance between two vectors.
func Manhattan(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

// Cosine calculates the cosine distance 1 - cos(a, b).
// Zero vectors are at distance 1 from everything but themselves.
func Cosine(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		if na == nb {
			return 0
		}
		return 1
	}
	sim := floats.Dot(a, b) / (na * nb)
	// Clamp rounding noise so identical vectors stay at distance 0.
	if sim > 1 {
		sim = 1
	}
	return 1 - sim
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricSquaredEuclidean Metric = iota
	MetricEuclidean
	MetricManhattan
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricSquaredEuclidean:
		return "SquaredEuclidean"
	case MetricEuclidean:
		return "Euclidean"
	case MetricManhattan:
		return "Manhattan"
	case MetricCosine:
		return "Cosine"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Squared reports whether the metric already yields squared distances.
func (m Metric) Squared() bool {
	return m == MetricSquaredEuclidean
}

// ParseMetric parses the name of a metric as printed by String,
// case-sensitively, plus the short aliases "sqeuclidean", "euclidean",
// "l1" and "cosine".
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "SquaredEuclidean", "sqeuclidean", "l2sq":
		return MetricSquaredEuclidean, nil
	case "Euclidean", "euclidean", "l2":
		return MetricEuclidean, nil
	case "Manhattan", "manhattan", "l1":
		return MetricManhattan, nil
	case "Cosine", "cosine":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unknown metric: %q", s)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float64) float64

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricSquaredEuclidean:
		return SquaredEuclidean, nil
	case MetricEuclidean:
		return Euclidean, nil
	case MetricManhattan:
		return Manhattan, nil
	case MetricCosine:
		return Cosine, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
