// Package model defines the item and embedding types shared by all tsnego packages.
//
// # Identity
//
//   - ID: caller-assigned item identifier (uint64)
//   - offset: dense position of an item in a Relation, 0..Len()-1
//
// Every algorithm in tsnego works on offsets. A Relation provides the
// offset to ID mapping, and an Embedding maps IDs back to coordinates.
//
// # Relations
//
//   - Relation: ordered, randomly indexable collection of IDs
//   - VectorRelation: Relation that also exposes feature vectors
//   - Indexed: optional reverse lookup from ID to offset
//   - Releaser: optional hook to drop input data once it is no longer needed
package model
