// Package distance provides distance functions over float64 feature vectors
// and the pairwise distance oracle consumed by the affinity builders.
//
// # Supported Metrics
//
//   - MetricSquaredEuclidean: squared Euclidean distance (default, already squared)
//   - MetricEuclidean: Euclidean distance
//   - MetricManhattan: L1 distance
//   - MetricCosine: cosine distance (1 - cosine similarity)
//
// # Queries
//
// A Query answers Distance(i, j) for two offsets of a relation. Affinity
// construction works on squared distances; IsSquared reports whether a query
// already returns them so they are not squared twice.
//
//	q, _ := distance.NewVectorQuery(items, distance.MetricEuclidean)
//	d := q.Distance(0, 1)
package distance
