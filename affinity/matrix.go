package affinity

import "iter"

const (
	// MinPij is the floor applied to every stored affinity.
	MinPij = 1e-12

	// DefaultExaggeration is the early exaggeration factor the matrix sums
	// to right after construction.
	DefaultExaggeration = 4.0
)

// Matrix is a symmetric affinity matrix over item offsets.
//
// The diagonal is always zero. Apart from Divide, a Matrix is read-only and
// safe for concurrent readers.
type Matrix interface {
	// Size returns the number of items.
	Size() int
	// Get returns the affinity between i and j, 0 if absent.
	Get(i, j int) float64
	// Row iterates the non-zero off-diagonal entries of row i.
	Row(i int) iter.Seq2[int, float64]
	// Divide divides every stored entry by d.
	Divide(d float64)
	// Sum returns the sum of all off-diagonal entries.
	Sum() float64
	// NNZ returns the number of stored off-diagonal entries.
	NNZ() int
}
