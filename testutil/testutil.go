package testutil

import (
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/tsnego/model"
)

// RNG wraps a seeded random source. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// UniformVectors returns num vectors with coordinates in [0, 1).
func (r *RNG) UniformVectors(num, dim int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]float64, num)
	for i := range out {
		v := make([]float64, dim)
		for j := range v {
			v[j] = r.rand.Float64()
		}
		out[i] = v
	}
	return out
}

// GaussianVectors returns num vectors drawn from a standard normal.
func (r *RNG) GaussianVectors(num, dim int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]float64, num)
	for i := range out {
		v := make([]float64, dim)
		for j := range v {
			v[j] = r.rand.NormFloat64()
		}
		out[i] = v
	}
	return out
}

// Blobs returns perCluster points around each of clusters well separated
// centers, plus the cluster label of every point. Centers are spaced 10
// units apart along successive axes; spread is the per-axis standard
// deviation.
func (r *RNG) Blobs(clusters, perCluster, dim int, spread float64) ([][]float64, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := clusters * perCluster
	vectors := make([][]float64, 0, n)
	labels := make([]int, 0, n)

	for c := range clusters {
		center := make([]float64, dim)
		center[c%dim] = 10 * float64(c/dim+1)
		for range perCluster {
			v := make([]float64, dim)
			for j := range v {
				v[j] = center[j] + spread*r.rand.NormFloat64()
			}
			vectors = append(vectors, v)
			labels = append(labels, c)
		}
	}

	// Interleave clusters so offsets carry no label information.
	perm := r.rand.Perm(n)
	shuffled := make([][]float64, n)
	shuffledLabels := make([]int, n)
	for i, p := range perm {
		shuffled[i] = vectors[p]
		shuffledLabels[i] = labels[p]
	}
	return shuffled, shuffledLabels
}

// Collection wraps vectors into a model.Collection with IDs 0..n-1.
func Collection(vectors [][]float64) *model.Collection {
	c, err := model.FromVectors(vectors)
	if err != nil {
		panic(err)
	}
	return c
}

// TwoPairs returns four 10-dimensional points forming two tight pairs far
// apart: offsets 0 and 1 sit at the origin and 0.01 along the first axis,
// offsets 2 and 3 at 100 and 100.01.
func TwoPairs() *model.Collection {
	rows := make([][]float64, 4)
	for i, x := range []float64{0, 0.01, 100, 100.01} {
		rows[i] = make([]float64, 10)
		rows[i][0] = x
	}
	return Collection(rows)
}

// Distance returns the Euclidean distance between two rows.
func Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// NeighborPurity returns the fraction of each point's k nearest neighbors
// in rows that share its label, averaged over all points.
func NeighborPurity(rows [][]float64, labels []int, k int) float64 {
	n := len(rows)
	if n < 2 || k < 1 {
		return 0
	}
	k = min(k, n-1)

	type cand struct {
		offset int
		dist   float64
	}

	var total float64
	cands := make([]cand, 0, n-1)
	for i := range rows {
		cands = cands[:0]
		for j := range rows {
			if j != i {
				cands = append(cands, cand{j, Distance(rows[i], rows[j])})
			}
		}
		slices.SortFunc(cands, func(a, b cand) int {
			switch {
			case a.dist < b.dist:
				return -1
			case a.dist > b.dist:
				return 1
			default:
				return a.offset - b.offset
			}
		})

		same := 0
		for _, c := range cands[:k] {
			if labels[c.offset] == labels[i] {
				same++
			}
		}
		total += float64(same) / float64(k)
	}
	return total / float64(n)
}

// Rows materializes an embedding into one slice per offset.
func Rows(emb *model.Embedding) [][]float64 {
	out := make([][]float64, emb.Len())
	for i := range out {
		out[i] = emb.Vector(i)
	}
	return out
}
