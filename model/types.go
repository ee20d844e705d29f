package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotIndexable is returned when a relation cannot provide a stable,
	// contiguous offset for every item.
	ErrNotIndexable = errors.New("relation is not indexable")

	// ErrDuplicateID is returned when two offsets share the same ID.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrDimensionMismatch is returned when vectors of one relation differ in length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// OffsetError reports the offset at which a relation failed validation.
type OffsetError struct {
	Offset int
	Err    error
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("offset %d: %v", e.Offset, e.Err)
}

func (e *OffsetError) Unwrap() error { return e.Err }

// ID is the caller-assigned identifier of an item.
type ID uint64

// String returns a string representation of the ID.
func (id ID) String() string {
	return fmt.Sprintf("ID(%d)", uint64(id))
}

// Item is an identifier together with its feature vector.
// The vector is owned by the caller and never modified.
type Item struct {
	ID     ID
	Vector []float64
}

// Neighbor is a single k-nearest-neighbor result.
type Neighbor struct {
	// Offset is the neighbor's position in the queried relation.
	Offset int
	// Distance is the metric-dependent distance to the query item.
	Distance float64
}

// Relation is an ordered, finite, randomly indexable collection of item IDs.
type Relation interface {
	// Len returns the number of items.
	Len() int
	// ID returns the identifier stored at offset.
	ID(offset int) ID
}

// VectorRelation is a Relation that exposes a feature vector per item.
type VectorRelation interface {
	Relation
	// Vector returns the feature vector stored at offset.
	Vector(offset int) []float64
}

// Indexed is implemented by relations that can resolve an ID to its offset.
type Indexed interface {
	Offset(id ID) (int, bool)
}

// Releaser is implemented by relations holding data that may be dropped
// once an embedding no longer needs it.
type Releaser interface {
	Release()
}
