package distance

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/tsnego/model"
)

// Query is a pairwise distance oracle over the offsets of one relation.
// Implementations must be safe for concurrent use.
type Query interface {
	Distance(i, j int) float64
}

// Squarer is implemented by queries that know whether their distances are
// already squared.
type Squarer interface {
	Squared() bool
}

// IsSquared reports whether q returns squared distances.
// Queries that do not implement Squarer are assumed to return plain distances.
func IsSquared(q Query) bool {
	s, ok := q.(Squarer)
	return ok && s.Squared()
}

// SquaredDistance returns the squared distance between i and j,
// squaring only if q does not already do so.
func SquaredDistance(q Query, i, j int) float64 {
	d := q.Distance(i, j)
	if IsSquared(q) {
		return d
	}
	return d * d
}

// QueryFunc adapts a function to the Query interface.
// Its distances are treated as not squared.
type QueryFunc func(i, j int) float64

// Distance implements Query.
func (f QueryFunc) Distance(i, j int) float64 { return f(i, j) }

// VectorQuery evaluates a metric over the vectors of a VectorRelation.
type VectorQuery struct {
	rel    model.VectorRelation
	fn     Func
	metric Metric
}

// NewVectorQuery creates a query evaluating m over rel.
func NewVectorQuery(rel model.VectorRelation, m Metric) (*VectorQuery, error) {
	fn, err := Provider(m)
	if err != nil {
		return nil, err
	}
	return &VectorQuery{rel: rel, fn: fn, metric: m}, nil
}

// Distance implements Query.
func (q *VectorQuery) Distance(i, j int) float64 {
	return q.fn(q.rel.Vector(i), q.rel.Vector(j))
}

// Squared implements Squarer.
func (q *VectorQuery) Squared() bool { return q.metric.Squared() }

// Metric returns the metric evaluated by the query.
func (q *VectorQuery) Metric() Metric { return q.metric }

// MatrixQuery answers distances from a precomputed symmetric matrix.
type MatrixQuery struct {
	m       *mat.SymDense
	squared bool
}

// NewMatrixQuery wraps a precomputed distance matrix. squared states whether
// its entries are squared distances.
func NewMatrixQuery(m *mat.SymDense, squared bool) *MatrixQuery {
	return &MatrixQuery{m: m, squared: squared}
}

// Precompute evaluates q for every pair of the first n offsets.
func Precompute(q Query, n int) (*MatrixQuery, error) {
	if n < 0 {
		return nil, fmt.Errorf("precompute: negative size %d", n)
	}
	if n == 0 {
		return &MatrixQuery{squared: IsSquared(q)}, nil
	}
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			m.SetSym(i, j, q.Distance(i, j))
		}
	}
	return &MatrixQuery{m: m, squared: IsSquared(q)}, nil
}

// Distance implements Query.
func (q *MatrixQuery) Distance(i, j int) float64 { return q.m.At(i, j) }

// Squared implements Squarer.
func (q *MatrixQuery) Squared() bool { return q.squared }
