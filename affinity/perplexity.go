package affinity

import (
	"context"
	"fmt"

	"github.com/hupe1980/tsnego/distance"
)

// PerplexityBuilder computes affinities from all pairwise distances and
// produces a Dense matrix. Time and memory are quadratic in n.
type PerplexityBuilder struct {
	opts Options
}

// Compile time check.
var _ Builder = (*PerplexityBuilder)(nil)

// NewPerplexityBuilder creates a dense builder starting from DefaultDenseOptions.
func NewPerplexityBuilder(optFns ...func(o *Options)) (*PerplexityBuilder, error) {
	opts := DefaultDenseOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &PerplexityBuilder{opts: opts}, nil
}

// Build implements Builder.
func (b *PerplexityBuilder) Build(ctx context.Context, n int, q distance.Query) (Matrix, Stats, error) {
	if n < 0 {
		return nil, Stats{}, fmt.Errorf("affinity: negative size %d", n)
	}
	if n-1 < int(b.opts.Perplexity) {
		b.opts.Logger.WarnContext(ctx, "perplexity exceeds the number of neighbors",
			"perplexity", b.opts.Perplexity,
			"neighbors", n-1,
		)
	}

	search := b.opts.search()
	// Conditional probabilities p(j|i), row-major, diagonal left at zero.
	cond := make([]float64, n*n)
	bws, err := fitRows(ctx, n, b.opts.Workers, func(i int) (Bandwidth, error) {
		others := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				others = append(others, j)
			}
		}
		dist := make([]float64, len(others))
		squaredRow(q, i, others, dist)
		if b.opts.Transform != nil {
			b.opts.Transform.Transform(dist)
		}
		p := make([]float64, len(others))
		bw := search.Fit(dist, p)
		row := cond[i*n : (i+1)*n]
		for k, j := range others {
			row[j] = p[k]
		}
		return bw, nil
	})
	if err != nil {
		return nil, Stats{}, err
	}
	st := summarize(ctx, b.opts.Logger, bws)

	m := NewDense(n)
	var sum float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := cond[i*n+j] + cond[j*n+i]
			m.Set(i, j, v)
			sum += v
		}
	}
	if sum > 0 {
		m.Scale(b.opts.Exaggeration / (2 * sum))
	}
	m.Clamp(MinPij)
	st.NNZ = m.NNZ()

	b.opts.Logger.DebugContext(ctx, "dense affinity built",
		"size", n,
		"converged", st.Converged,
		"iterations", st.Iterations,
	)
	return m, st, nil
}
