package affinity

import (
	"iter"
	"slices"
	"sort"
)

// Sparse is a Matrix in compressed sparse row form. Both (i, j) and (j, i)
// are stored, and the columns of every row are sorted.
type Sparse struct {
	indptr  []int
	indices []int
	values  []float64
}

// Compile time check.
var _ Matrix = (*Sparse)(nil)

// NewSparse creates a sparse matrix from rows of sorted, unique column
// indices. The values start at zero.
func NewSparse(cols [][]int) *Sparse {
	nnz := 0
	for _, c := range cols {
		nnz += len(c)
	}
	s := &Sparse{
		indptr:  make([]int, len(cols)+1),
		indices: make([]int, 0, nnz),
		values:  make([]float64, nnz),
	}
	for i, c := range cols {
		s.indices = append(s.indices, c...)
		s.indptr[i+1] = len(s.indices)
	}
	return s
}

// Size implements Matrix.
func (s *Sparse) Size() int { return len(s.indptr) - 1 }

// pos returns the storage position of (i, j), or -1 if absent.
func (s *Sparse) pos(i, j int) int {
	lo, hi := s.indptr[i], s.indptr[i+1]
	row := s.indices[lo:hi]
	k := sort.SearchInts(row, j)
	if k < len(row) && row[k] == j {
		return lo + k
	}
	return -1
}

// Get implements Matrix.
func (s *Sparse) Get(i, j int) float64 {
	if p := s.pos(i, j); p >= 0 {
		return s.values[p]
	}
	return 0
}

// add accumulates v into the stored entry (i, j). It reports false if the
// entry is not part of the sparsity pattern.
func (s *Sparse) add(i, j int, v float64) bool {
	p := s.pos(i, j)
	if p < 0 {
		return false
	}
	s.values[p] += v
	return true
}

// Row implements Matrix.
func (s *Sparse) Row(i int) iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		for p := s.indptr[i]; p < s.indptr[i+1]; p++ {
			if !yield(s.indices[p], s.values[p]) {
				return
			}
		}
	}
}

// Columns returns a copy of the column indices of row i.
func (s *Sparse) Columns(i int) []int {
	return slices.Clone(s.indices[s.indptr[i]:s.indptr[i+1]])
}

// RowLen returns the number of stored entries of row i.
func (s *Sparse) RowLen(i int) int { return s.indptr[i+1] - s.indptr[i] }

// Divide implements Matrix.
func (s *Sparse) Divide(d float64) {
	for p := range s.values {
		s.values[p] /= d
	}
}

// Scale multiplies every entry by f.
func (s *Sparse) Scale(f float64) {
	for p := range s.values {
		s.values[p] *= f
	}
}

// Clamp raises every stored entry to at least lo.
func (s *Sparse) Clamp(lo float64) {
	for p, v := range s.values {
		s.values[p] = max(v, lo)
	}
}

// Sum implements Matrix.
func (s *Sparse) Sum() float64 {
	var sum float64
	for _, v := range s.values {
		sum += v
	}
	return sum
}

// NNZ implements Matrix.
func (s *Sparse) NNZ() int { return len(s.values) }
