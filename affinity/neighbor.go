package affinity

import (
	"context"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/tsnego/distance"
	"github.com/hupe1980/tsnego/knn"
)

// NeighborBuilder computes affinities from the k = ceil(3·perplexity)
// nearest neighbors of every item and produces a Sparse matrix.
type NeighborBuilder struct {
	opts     Options
	searcher knn.Searcher
}

// Compile time check.
var _ Builder = (*NeighborBuilder)(nil)

// NewNeighborBuilder creates a sparse builder starting from DefaultSparseOptions.
// A nil searcher selects exact brute-force search over the query passed to Build.
// Neighbor distances are interpreted with the squaredness of that query.
func NewNeighborBuilder(searcher knn.Searcher, optFns ...func(o *Options)) (*NeighborBuilder, error) {
	opts := DefaultSparseOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &NeighborBuilder{opts: opts, searcher: searcher}, nil
}

// K returns the number of neighbors considered per item for n items.
func (b *NeighborBuilder) K(n int) int {
	// Clamp before converting: 3·perplexity may exceed the int range.
	k := math.Min(math.Ceil(3*b.opts.Perplexity), float64(n-1))
	return max(int(k), 0)
}

// Build implements Builder.
func (b *NeighborBuilder) Build(ctx context.Context, n int, q distance.Query) (Matrix, Stats, error) {
	if n < 0 {
		return nil, Stats{}, fmt.Errorf("affinity: negative size %d", n)
	}
	if uint64(n) > math.MaxUint32 {
		return nil, Stats{}, fmt.Errorf("affinity: %d items exceed the sparse index range", n)
	}
	k := b.K(n)
	if float64(k) < b.opts.Perplexity {
		b.opts.Logger.WarnContext(ctx, "perplexity exceeds the number of neighbors",
			"perplexity", b.opts.Perplexity,
			"neighbors", k,
		)
	}

	searcher := b.searcher
	if searcher == nil {
		searcher = knn.NewFlat(q, n)
	}
	neighbors, err := knn.SearchAll(ctx, searcher, n, k, b.opts.Workers)
	if err != nil {
		return nil, Stats{}, err
	}

	squared := distance.IsSquared(q)
	search := b.opts.search()
	condCols := make([][]int, n)
	condVals := make([][]float64, n)
	bws, err := fitRows(ctx, n, b.opts.Workers, func(i int) (Bandwidth, error) {
		cols := make([]int, 0, len(neighbors[i]))
		dist := make([]float64, 0, len(neighbors[i]))
		for _, nb := range neighbors[i] {
			if nb.Offset == i {
				continue
			}
			if nb.Offset < 0 || nb.Offset >= n {
				return Bandwidth{}, fmt.Errorf("affinity: row %d: neighbor offset %d out of range", i, nb.Offset)
			}
			d := nb.Distance
			if !squared {
				d *= d
			}
			cols = append(cols, nb.Offset)
			dist = append(dist, d)
		}
		if b.opts.Transform != nil {
			b.opts.Transform.Transform(dist)
		}
		p := make([]float64, len(dist))
		bw := search.Fit(dist, p)
		condCols[i] = cols
		condVals[i] = p
		return bw, nil
	})
	if err != nil {
		return nil, Stats{}, err
	}
	st := summarize(ctx, b.opts.Logger, bws)

	m, asym := symmetrize(n, condCols, condVals)
	st.Asymmetric = asym
	if sum := m.Sum(); sum > 0 {
		m.Scale(b.opts.Exaggeration / sum)
	}
	m.Clamp(MinPij)
	st.NNZ = m.NNZ()

	b.opts.Logger.DebugContext(ctx, "sparse affinity built",
		"size", n,
		"k", k,
		"nnz", st.NNZ,
		"asymmetric", st.Asymmetric,
		"converged", st.Converged,
	)
	return m, st, nil
}

// symmetrize builds p(i,j) = p(j|i) + p(i|j) over the union of both
// neighbor directions. It returns the matrix and the number of relations
// that had to be mirrored.
func symmetrize(n int, condCols [][]int, condVals [][]float64) (*Sparse, int) {
	sets := make([]*roaring.Bitmap, n)
	for i, cols := range condCols {
		sets[i] = roaring.New()
		for _, j := range cols {
			sets[i].Add(uint32(j))
		}
	}
	asym := 0
	for i, cols := range condCols {
		for _, j := range cols {
			if sets[j].CheckedAdd(uint32(i)) {
				asym++
			}
		}
	}

	cols := make([][]int, n)
	for i, set := range sets {
		row := make([]int, 0, set.GetCardinality())
		it := set.Iterator()
		for it.HasNext() {
			row = append(row, int(it.Next()))
		}
		cols[i] = row
	}
	m := NewSparse(cols)

	for i, row := range condCols {
		for k, j := range row {
			v := condVals[i][k]
			m.add(i, j, v)
			m.add(j, i, v)
		}
	}
	return m, asym
}

