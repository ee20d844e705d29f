package model

import (
	"fmt"
	"iter"
)

// Embedding is the materialized result of an embedding run: one
// fixed-dimensionality coordinate vector per item ID.
//
// Coordinates are stored in a single flat slice, row-major.
type Embedding struct {
	ids      []ID
	coords   []float64
	dim      int
	index    map[ID]int
	original Relation
}

// Compile time checks.
var (
	_ VectorRelation = (*Embedding)(nil)
	_ Indexed        = (*Embedding)(nil)
)

// NewEmbedding creates an embedding over ids with coordinates copied from rows.
func NewEmbedding(ids []ID, dim int, rows [][]float64) (*Embedding, error) {
	if len(ids) != len(rows) {
		return nil, fmt.Errorf("embedding: %d ids for %d rows", len(ids), len(rows))
	}
	flat := make([]float64, 0, len(rows)*dim)
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("embedding: row %d: %w: expected %d, got %d", i, ErrDimensionMismatch, dim, len(r))
		}
		flat = append(flat, r...)
	}
	return NewEmbeddingFlat(ids, dim, flat)
}

// NewEmbeddingFlat creates an embedding that takes ownership of a flat,
// row-major coordinate slice of length len(ids)*dim.
func NewEmbeddingFlat(ids []ID, dim int, coords []float64) (*Embedding, error) {
	if dim < 1 {
		return nil, fmt.Errorf("embedding: invalid dimension %d", dim)
	}
	if len(coords) != len(ids)*dim {
		return nil, fmt.Errorf("embedding: %d coordinates for %d ids of dimension %d", len(coords), len(ids), dim)
	}
	index := make(map[ID]int, len(ids))
	for i, id := range ids {
		if _, ok := index[id]; ok {
			return nil, fmt.Errorf("embedding: %w: %d", ErrDuplicateID, id)
		}
		index[id] = i
	}
	return &Embedding{ids: ids, coords: coords, dim: dim, index: index}, nil
}

// Len implements Relation.
func (e *Embedding) Len() int { return len(e.ids) }

// ID implements Relation.
func (e *Embedding) ID(offset int) ID { return e.ids[offset] }

// Vector implements VectorRelation. The returned slice aliases internal storage.
func (e *Embedding) Vector(offset int) []float64 {
	return e.coords[offset*e.dim : (offset+1)*e.dim : (offset+1)*e.dim]
}

// Offset implements Indexed.
func (e *Embedding) Offset(id ID) (int, bool) {
	off, ok := e.index[id]
	return off, ok
}

// Dimension returns the output dimensionality.
func (e *Embedding) Dimension() int { return e.dim }

// Get returns the coordinates of id.
func (e *Embedding) Get(id ID) ([]float64, bool) {
	off, ok := e.index[id]
	if !ok {
		return nil, false
	}
	return e.Vector(off), true
}

// All iterates over (ID, coordinates) pairs in offset order.
func (e *Embedding) All() iter.Seq2[ID, []float64] {
	return func(yield func(ID, []float64) bool) {
		for i, id := range e.ids {
			if !yield(id, e.Vector(i)) {
				return
			}
		}
	}
}

// Flat returns the row-major coordinate storage.
func (e *Embedding) Flat() []float64 { return e.coords }

// IDs returns the item identifiers in offset order.
func (e *Embedding) IDs() []ID { return e.ids }

// Original returns the input relation if it was retained, or nil.
func (e *Embedding) Original() Relation { return e.original }

// SetOriginal attaches the input relation to the embedding.
func (e *Embedding) SetOriginal(rel Relation) { e.original = rel }
