// Package quadtree implements the Barnes-Hut space partitioning tree over
// embedding coordinates of arbitrary dimensionality.
//
// Every node stores its weight (number of points below it), its center of
// mass and its squared diagonal. A node is split along all axes in turn
// around the midpoint of its bounding box, which yields up to 2^D children.
// Single points produced by a split are stored directly at the node.
//
// Nodes live in one arena slice and refer to their children by index.
// A tree is read-only once built and safe for concurrent readers.
package quadtree

import (
	"errors"
	"fmt"
)

const (
	// MinResolution is the squared extent below which a node is not split.
	MinResolution = 1e-10

	// DefaultLeafCapacity is the point count below which a node becomes a leaf.
	DefaultLeafCapacity = 10
)

// ErrWeightMismatch is returned by Validate for inconsistent node weights.
var ErrWeightMismatch = errors.New("quadtree: weight mismatch")

// Node is a single tree node.
type Node struct {
	// Weight is the number of points in the subtree.
	Weight int
	// Center is the center of mass of the subtree.
	Center []float64
	// SquareSize is the sum of squared bounding box extents.
	SquareSize float64
	// Points holds the coordinates stored directly at this node.
	Points [][]float64
	// Children are arena indices of the child nodes.
	Children []int32
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Tree is a Barnes-Hut tree. Nodes[0] is the root.
type Tree struct {
	Dim   int
	Nodes []Node
}

// Root returns the root node.
func (t *Tree) Root() *Node { return &t.Nodes[0] }

// Node returns the node with the given arena index.
func (t *Tree) Node(id int32) *Node { return &t.Nodes[id] }

// Validate checks that every node's weight equals the number of its own
// points plus the weights of its children, and that the root holds n points.
func (t *Tree) Validate(n int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: empty arena", ErrWeightMismatch)
	}
	if w := t.Root().Weight; w != n {
		return fmt.Errorf("%w: root weight %d, expected %d", ErrWeightMismatch, w, n)
	}
	for id := range t.Nodes {
		nd := &t.Nodes[id]
		sum := len(nd.Points)
		for _, c := range nd.Children {
			sum += t.Nodes[c].Weight
		}
		if sum != nd.Weight {
			return fmt.Errorf("%w: node %d has weight %d, content %d", ErrWeightMismatch, id, nd.Weight, sum)
		}
	}
	return nil
}

// Build constructs a tree over points. The order of points is left intact.
func Build(dim int, points [][]float64, leafCapacity int) *Tree {
	b := NewBuilder(dim, leafCapacity)
	return b.Build(points)
}

// Builder builds trees while reusing its buffers between calls.
// A tree returned by Build stays valid until the next call.
type Builder struct {
	dim      int
	capacity int
	work     [][]float64
	tree     Tree
}

// NewBuilder creates a builder for dim-dimensional points.
// A leafCapacity below 1 selects DefaultLeafCapacity.
func NewBuilder(dim, leafCapacity int) *Builder {
	if leafCapacity < 1 {
		leafCapacity = DefaultLeafCapacity
	}
	return &Builder{dim: dim, capacity: leafCapacity, tree: Tree{Dim: dim}}
}

// Build constructs a tree over points. Only a private copy of the point
// references is reordered.
func (b *Builder) Build(points [][]float64) *Tree {
	b.work = append(b.work[:0], points...)
	clear(b.tree.Nodes)
	b.tree.Nodes = b.tree.Nodes[:0]
	if len(points) == 0 {
		b.tree.Nodes = append(b.tree.Nodes, Node{Center: make([]float64, b.dim)})
		return &b.tree
	}
	b.build(0, len(points))
	return &b.tree
}

func (b *Builder) build(begin, end int) int32 {
	id := int32(len(b.tree.Nodes))
	b.tree.Nodes = append(b.tree.Nodes, Node{})

	data := b.work[begin:end:end]
	minmax := extent(b.dim, data)
	nd := Node{
		Weight:     len(data),
		Center:     centerOfMass(b.dim, data),
		SquareSize: squareSize(minmax),
	}
	if len(data) < b.capacity || nd.SquareSize <= MinResolution {
		nd.Points = data
		b.tree.Nodes[id] = nd
		return id
	}

	var singles [][]float64
	var children []int32
	b.split(begin, end, 0, minmax, &singles, &children)
	nd.Points = singles
	nd.Children = children
	b.tree.Nodes[id] = nd
	return id
}

// leaf stores [begin, end) unsplit in a new node with its own extent.
func (b *Builder) leaf(begin, end int) int32 {
	id := int32(len(b.tree.Nodes))
	data := b.work[begin:end:end]
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Weight:     len(data),
		Center:     centerOfMass(b.dim, data),
		SquareSize: squareSize(extent(b.dim, data)),
		Points:     data,
	})
	return id
}

// split partitions [begin, end) along axis and all following axes around
// the midpoints of the enclosing node's bounding box.
func (b *Builder) split(begin, end, axis int, minmax []float64, singles *[][]float64, children *[]int32) {
	if end-begin <= 1 {
		if end-begin == 1 {
			*singles = append(*singles, b.work[begin])
		}
		return
	}

	var mid float64
	for {
		lo, hi := minmax[2*axis], minmax[2*axis+1]
		mid = .5 * (lo + hi)
		if lo < mid {
			break
		}
		axis++
		if axis == b.dim {
			// All remaining axes are constant.
			*children = append(*children, b.leaf(begin, end))
			return
		}
	}

	l := partition(b.work, begin, end, axis, mid)
	axis++
	if axis < b.dim {
		if begin < l {
			b.split(begin, l, axis, minmax, singles, children)
		}
		if l < end {
			b.split(l, end, axis, minmax, singles, children)
		}
		return
	}
	b.child(begin, l, singles, children)
	b.child(l, end, singles, children)
}

func (b *Builder) child(begin, end int, singles *[][]float64, children *[]int32) {
	switch end - begin {
	case 0:
	case 1:
		*singles = append(*singles, b.work[begin])
	default:
		*children = append(*children, b.build(begin, end))
	}
}

// partition reorders data[begin:end] so that values <= mid on the given
// axis come first. It returns the start of the upper part.
func partition(data [][]float64, begin, end, axis int, mid float64) int {
	l, r := begin, end-1
	for l <= r {
		for l <= r && data[l][axis] <= mid {
			l++
		}
		for l <= r && data[r][axis] >= mid {
			r--
		}
		if l < r {
			data[l], data[r] = data[r], data[l]
			l++
			r--
		}
	}
	return l
}

// extent returns the bounding box as interleaved (min, max) pairs.
func extent(dim int, data [][]float64) []float64 {
	minmax := make([]float64, 2*dim)
	for d := 0; d < dim; d++ {
		minmax[2*d] = data[0][d]
		minmax[2*d+1] = data[0][d]
	}
	for _, row := range data[1:] {
		for d := 0; d < dim; d++ {
			v := row[d]
			minmax[2*d] = min(minmax[2*d], v)
			minmax[2*d+1] = max(minmax[2*d+1], v)
		}
	}
	return minmax
}

// squareSize returns the squared diagonal of the bounding box.
func squareSize(minmax []float64) float64 {
	var s float64
	for d := 0; d+1 < len(minmax); d += 2 {
		w := minmax[d+1] - minmax[d]
		s += w * w
	}
	return s
}

func centerOfMass(dim int, data [][]float64) []float64 {
	if len(data) == 1 {
		return data[0]
	}
	center := make([]float64, dim)
	for _, row := range data {
		for d := 0; d < dim; d++ {
			center[d] += row[d]
		}
	}
	norm := 1 / float64(len(data))
	for d := range center {
		center[d] *= norm
	}
	return center
}
