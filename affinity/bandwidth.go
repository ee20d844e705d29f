package affinity

import "math"

// Bandwidth is the outcome of a bandwidth search for one row.
type Bandwidth struct {
	// Beta is the precision 1/(2σ²) that was settled on.
	Beta float64
	// Entropy is the entropy in nats of the resulting row distribution.
	Entropy float64
	// Iterations is the number of bisection steps taken.
	Iterations int
	// Converged reports whether the entropy is within tolerance of ln(perplexity).
	Converged bool
	// Degenerate reports that no finite entropy was reached and the row
	// was filled uniformly.
	Degenerate bool
}

// BandwidthSearch fits β for a single row of squared distances.
type BandwidthSearch struct {
	Perplexity float64
	Tolerance  float64
	MaxIter    int
}

// Fit searches β for the squared distances dist and writes the normalized
// row distribution into p, which must have the same length as dist.
//
// Fit never fails. If the entropy is undefined (all distances zero) the
// search runs out of budget and p is set to the uniform distribution.
func (s BandwidthSearch) Fit(dist, p []float64) Bandwidth {
	if len(dist) == 0 {
		return Bandwidth{Converged: true}
	}
	logPerp := math.Log(s.Perplexity)

	beta := InitialBeta(dist, s.Perplexity)
	h := Entropy(dist, p, beta)
	diff := h - logPerp
	betaMin, betaMax := 0.0, math.Inf(1)

	it := 0
	// Written as a negated comparison so that a NaN diff keeps searching.
	for ; it < s.MaxIter && !(math.Abs(diff) <= s.Tolerance); it++ {
		if diff > 0 {
			betaMin = beta
			if math.IsInf(betaMax, 1) {
				beta *= 2
			} else {
				beta += (betaMax - beta) * .5
			}
		} else {
			betaMax = beta
			beta -= (beta - betaMin) * .5
		}
		h = Entropy(dist, p, beta)
		diff = h - logPerp
	}

	bw := Bandwidth{
		Beta:       beta,
		Entropy:    h,
		Iterations: it,
		Converged:  math.Abs(diff) <= s.Tolerance,
	}
	if math.IsInf(h, -1) || math.IsNaN(h) {
		u := 1 / float64(len(p))
		for j := range p {
			p[j] = u
		}
		bw.Entropy = math.Log(float64(len(p)))
		bw.Degenerate = true
	}
	return bw
}

// InitialBeta returns the seed of the bandwidth search:
// ½ · perplexity · len(dist) / Σ dist. Infinite distances are ignored.
// A row without any positive finite distance yields +Inf.
func InitialBeta(dist []float64, perplexity float64) float64 {
	var sum float64
	for _, d := range dist {
		if !math.IsInf(d, 1) {
			sum += d
		}
	}
	if !(sum > 0) || math.IsInf(sum, 1) {
		return math.Inf(1)
	}
	return .5 / sum * perplexity * float64(len(dist))
}

// Entropy writes the normalized distribution exp(-β·d) into p and returns
// its Shannon entropy in nats. It returns -Inf when β is not finite or the
// distribution cannot be normalized.
func Entropy(dist, p []float64, beta float64) float64 {
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return math.Inf(-1)
	}
	// Entropy is invariant to a shift of all distances; shifting by the
	// minimum keeps the largest weight at 1 and avoids underflow.
	dmin := math.Inf(1)
	for _, d := range dist {
		dmin = min(dmin, d)
	}
	var sumP float64
	for j, d := range dist {
		p[j] = math.Exp(-beta * (d - dmin))
		sumP += p[j]
	}
	if !(sumP > 0) || math.IsInf(sumP, 1) {
		return math.Inf(-1)
	}
	s := 1 / sumP
	var sum float64
	for j, d := range dist {
		p[j] *= s
		if p[j] > 0 {
			sum += (d - dmin) * p[j]
		}
	}
	return math.Log(sumP) + beta*sum
}
