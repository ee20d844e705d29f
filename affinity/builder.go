package affinity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tsnego/distance"
)

// ErrInvalidPerplexity is returned when the perplexity is not a positive number.
var ErrInvalidPerplexity = errors.New("perplexity must be positive")

// Builder turns pairwise distances over n items into an affinity Matrix.
type Builder interface {
	Build(ctx context.Context, n int, q distance.Query) (Matrix, Stats, error)
}

// Stats summarizes an affinity build.
type Stats struct {
	// Rows is the number of rows that were fitted.
	Rows int
	// Converged counts rows whose entropy reached the tolerance.
	Converged int
	// Degenerate counts rows that fell back to a uniform distribution.
	Degenerate int
	// Iterations is the total number of bisection steps over all rows.
	Iterations int
	// Asymmetric counts neighbor relations that only existed in one
	// direction and were mirrored during symmetrization.
	Asymmetric int
	// NNZ is the number of stored off-diagonal entries.
	NNZ int
}

// Options contains configuration options for the affinity builders.
type Options struct {
	// Perplexity is the target effective number of neighbors.
	Perplexity float64

	// Exaggeration is the value the finished matrix sums to.
	Exaggeration float64

	// Tolerance is the accepted absolute entropy error in nats.
	Tolerance float64

	// MaxIter bounds the bisection steps per row.
	MaxIter int

	// Workers is the number of rows fitted concurrently. Values < 1 mean 1.
	Workers int

	// Transform optionally rescales each row's squared distances.
	Transform DistanceTransform

	// Logger receives build diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultDenseOptions contains the default options for the PerplexityBuilder.
var DefaultDenseOptions = Options{
	Perplexity:   40,
	Exaggeration: DefaultExaggeration,
	Tolerance:    1e-5,
	MaxIter:      50,
	Workers:      1,
}

// DefaultSparseOptions contains the default options for the NeighborBuilder.
var DefaultSparseOptions = Options{
	Perplexity:   40,
	Exaggeration: DefaultExaggeration,
	Tolerance:    1e-4,
	MaxIter:      25,
	Workers:      1,
}

func (o *Options) validate() error {
	if !(o.Perplexity > 0) || math.IsInf(o.Perplexity, 1) {
		return fmt.Errorf("%w: %v", ErrInvalidPerplexity, o.Perplexity)
	}
	if !(o.Exaggeration > 0) {
		return fmt.Errorf("affinity: exaggeration must be positive: %v", o.Exaggeration)
	}
	if o.Tolerance < 0 {
		return fmt.Errorf("affinity: tolerance must not be negative: %v", o.Tolerance)
	}
	if o.MaxIter < 0 {
		return fmt.Errorf("affinity: max iterations must not be negative: %d", o.MaxIter)
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

func (o *Options) search() BandwidthSearch {
	return BandwidthSearch{Perplexity: o.Perplexity, Tolerance: o.Tolerance, MaxIter: o.MaxIter}
}

// fitRows runs fit for every row in [0, n) on a bounded worker pool and
// collects the per-row bandwidths in row order.
func fitRows(ctx context.Context, n, workers int, fit func(i int) (Bandwidth, error)) ([]Bandwidth, error) {
	out := make([]Bandwidth, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bw, err := fit(i)
			if err != nil {
				return err
			}
			out[i] = bw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// summarize folds the per-row bandwidths into stats and logs degenerate rows.
func summarize(ctx context.Context, logger *slog.Logger, bws []Bandwidth) Stats {
	st := Stats{Rows: len(bws)}
	for i, bw := range bws {
		st.Iterations += bw.Iterations
		if bw.Converged {
			st.Converged++
		}
		if bw.Degenerate {
			st.Degenerate++
			logger.DebugContext(ctx, "degenerate affinity row", "row", i, "iterations", bw.Iterations)
		}
	}
	if st.Degenerate > 0 {
		logger.WarnContext(ctx, "affinity rows fell back to uniform weights",
			"degenerate", st.Degenerate,
			"rows", st.Rows,
		)
	}
	return st
}

// squaredRow fills dst with the squared distances from i to the given offsets.
func squaredRow(q distance.Query, i int, offsets []int, dst []float64) {
	squared := distance.IsSquared(q)
	for k, j := range offsets {
		d := q.Distance(i, j)
		if !squared {
			d *= d
		}
		dst[k] = d
	}
}
