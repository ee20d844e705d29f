package affinity

import (
	"iter"

	"gonum.org/v1/gonum/mat"
)

// Dense is a Matrix storing every pair, backed by a gonum symmetric matrix.
type Dense struct {
	n   int
	sym *mat.SymDense
}

// Compile time check.
var _ Matrix = (*Dense)(nil)

// NewDense creates an all-zero dense matrix over n items.
func NewDense(n int) *Dense {
	d := &Dense{n: n}
	if n > 0 {
		d.sym = mat.NewSymDense(n, nil)
	}
	return d
}

// Size implements Matrix.
func (d *Dense) Size() int { return d.n }

// Get implements Matrix.
func (d *Dense) Get(i, j int) float64 {
	if i == j {
		return 0
	}
	return d.sym.At(i, j)
}

// Set stores v for the pair (i, j) and (j, i). The diagonal is ignored.
func (d *Dense) Set(i, j int, v float64) {
	if i == j {
		return
	}
	d.sym.SetSym(i, j, v)
}

// Row implements Matrix.
func (d *Dense) Row(i int) iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		raw := d.sym.RawSymmetric()
		// Only the upper triangle is stored.
		for j := 0; j < i; j++ {
			if v := raw.Data[j*raw.Stride+i]; v != 0 {
				if !yield(j, v) {
					return
				}
			}
		}
		for j := i + 1; j < d.n; j++ {
			if v := raw.Data[i*raw.Stride+j]; v != 0 {
				if !yield(j, v) {
					return
				}
			}
		}
	}
}

// Divide implements Matrix.
func (d *Dense) Divide(s float64) {
	d.apply(func(v float64) float64 { return v / s })
}

// Scale multiplies every entry by s.
func (d *Dense) Scale(s float64) {
	d.apply(func(v float64) float64 { return v * s })
}

// Clamp raises every off-diagonal entry to at least lo.
func (d *Dense) Clamp(lo float64) {
	d.apply(func(v float64) float64 { return max(v, lo) })
}

func (d *Dense) apply(fn func(float64) float64) {
	if d.n == 0 {
		return
	}
	raw := d.sym.RawSymmetric()
	for i := 0; i < d.n; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+d.n]
		for j := i + 1; j < d.n; j++ {
			row[j] = fn(row[j])
		}
	}
}

// Sum implements Matrix.
func (d *Dense) Sum() float64 {
	if d.n == 0 {
		return 0
	}
	raw := d.sym.RawSymmetric()
	var s float64
	for i := 0; i < d.n; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+d.n]
		for j := i + 1; j < d.n; j++ {
			s += row[j]
		}
	}
	return 2 * s
}

// NNZ implements Matrix.
func (d *Dense) NNZ() int {
	if d.n == 0 {
		return 0
	}
	raw := d.sym.RawSymmetric()
	nnz := 0
	for i := 0; i < d.n; i++ {
		for j := i + 1; j < d.n; j++ {
			if raw.Data[i*raw.Stride+j] != 0 {
				nnz += 2
			}
		}
	}
	return nnz
}

// Sym returns the underlying gonum matrix. Its diagonal is zero.
func (d *Dense) Sym() *mat.SymDense { return d.sym }
