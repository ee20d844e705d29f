// Package affinity builds the symmetric pairwise affinity model that t-SNE
// optimizes towards.
//
// For every item a bandwidth β = 1/(2σ²) is searched such that the entropy
// of its conditional neighbor distribution exp(-β·d) matches ln(perplexity).
// The conditional rows are symmetrized, scaled so that the whole matrix sums
// to the early exaggeration factor, and floored at MinPij.
//
// Two builders exist:
//
//   - PerplexityBuilder considers all N-1 other items and yields a Dense matrix.
//   - NeighborBuilder considers only the ceil(3·perplexity) nearest neighbors
//     and yields a Sparse matrix.
//
// A DistanceTransform may rescale every row's distances before the search,
// for example IntrinsicDimensionality.
package affinity
