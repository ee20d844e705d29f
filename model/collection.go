package model

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Collection is an in-memory VectorRelation backed by a slice of items.
type Collection struct {
	items []Item
	index map[ID]int
	dim   int
}

// Compile time checks.
var (
	_ VectorRelation = (*Collection)(nil)
	_ Indexed        = (*Collection)(nil)
	_ Releaser       = (*Collection)(nil)
)

// NewCollection creates a collection over a copy of items. All vectors must
// share the same non-zero length and every ID must be unique. The vectors
// themselves are not copied and must not be modified while in use; Release
// only drops the collection's references.
func NewCollection(items []Item) (*Collection, error) {
	return newCollection(slices.Clone(items))
}

func newCollection(items []Item) (*Collection, error) {
	c := &Collection{
		items: items,
		index: make(map[ID]int, len(items)),
	}
	for i, it := range items {
		if _, ok := c.index[it.ID]; ok {
			return nil, &OffsetError{Offset: i, Err: fmt.Errorf("%w: %d", ErrDuplicateID, it.ID)}
		}
		c.index[it.ID] = i
		if i == 0 {
			c.dim = len(it.Vector)
			if c.dim == 0 {
				return nil, &OffsetError{Offset: i, Err: fmt.Errorf("%w: empty vector", ErrDimensionMismatch)}
			}
			continue
		}
		if len(it.Vector) != c.dim {
			return nil, &OffsetError{Offset: i, Err: fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, c.dim, len(it.Vector))}
		}
	}
	return c, nil
}

// FromVectors creates a collection assigning IDs 0..len(vectors)-1.
func FromVectors(vectors [][]float64) (*Collection, error) {
	items := make([]Item, len(vectors))
	for i, v := range vectors {
		items[i] = Item{ID: ID(i), Vector: v}
	}
	return newCollection(items)
}

// Len implements Relation.
func (c *Collection) Len() int { return len(c.items) }

// ID implements Relation.
func (c *Collection) ID(offset int) ID { return c.items[offset].ID }

// Vector implements VectorRelation. It returns nil after Release.
func (c *Collection) Vector(offset int) []float64 { return c.items[offset].Vector }

// Dimension returns the length of the stored vectors.
func (c *Collection) Dimension() int { return c.dim }

// Offset implements Indexed.
func (c *Collection) Offset(id ID) (int, bool) {
	off, ok := c.index[id]
	return off, ok
}

// Release drops the references to all feature vectors. IDs stay available.
func (c *Collection) Release() {
	for i := range c.items {
		c.items[i].Vector = nil
	}
}

// ValidateRelation checks that rel offers a stable, contiguous offset for
// every item: a non-negative length, unique IDs and, if rel implements
// Indexed, an Offset lookup that agrees with ID.
// Vector relations must also report equally sized, non-empty vectors.
func ValidateRelation(rel Relation) error {
	if rel == nil {
		return fmt.Errorf("%w: nil relation", ErrNotIndexable)
	}
	n := rel.Len()
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", ErrNotIndexable, n)
	}

	seen := roaring64.New()
	indexed, _ := rel.(Indexed)
	for i := 0; i < n; i++ {
		id := rel.ID(i)
		if !seen.CheckedAdd(uint64(id)) {
			return &OffsetError{Offset: i, Err: fmt.Errorf("%w: %w: %d", ErrNotIndexable, ErrDuplicateID, id)}
		}
		if indexed != nil {
			if off, ok := indexed.Offset(id); !ok || off != i {
				return &OffsetError{Offset: i, Err: fmt.Errorf("%w: id %d resolves to offset %d", ErrNotIndexable, id, off)}
			}
		}
	}

	vr, ok := rel.(VectorRelation)
	if !ok || n == 0 {
		return nil
	}
	dim := len(vr.Vector(0))
	if dim == 0 {
		return &OffsetError{Offset: 0, Err: fmt.Errorf("%w: %w: empty vector", ErrNotIndexable, ErrDimensionMismatch)}
	}
	for i := 1; i < n; i++ {
		if d := len(vr.Vector(i)); d != dim {
			return &OffsetError{Offset: i, Err: fmt.Errorf("%w: %w: expected %d, got %d", ErrNotIndexable, ErrDimensionMismatch, dim, d)}
		}
	}
	return nil
}
