// Package tsnego embeds high-dimensional data into a low-dimensional space
// with Barnes-Hut t-SNE.
//
// An Embedder turns N items, described by feature vectors or by a pairwise
// distance oracle, into one D-dimensional coordinate vector per item such
// that items close in the input stay close in the embedding.
//
// # Quick Start
//
//	embedder, err := tsnego.New(
//	    tsnego.WithPerplexity(30),
//	    tsnego.WithIterations(1000),
//	    tsnego.WithSeed(42),
//	)
//	if err != nil { ... }
//
//	emb, err := embedder.EmbedVectors(ctx, vectors, distance.MetricEuclidean)
//	for id, xy := range emb.All() {
//	    fmt.Println(id, xy[0], xy[1])
//	}
//
// # Pipeline
//
// Embed runs, in order:
//
//  1. Relation validation: every item needs a stable, contiguous offset.
//  2. Working-memory check and reservation with the resource controller.
//  3. Affinity construction: per-item bandwidths are searched so that each
//     conditional distribution reaches the configured perplexity, then the
//     matrix is symmetrized and scaled to the early-exaggeration constant.
//  4. Optimization: a fixed number of momentum gradient steps with adaptive
//     gains. Repulsive forces are approximated with a spatial tree.
//  5. Materialization into a model.Embedding keyed by item ID.
//
// # Methods
//
// MethodBarnesHut (default) builds sparse affinities over the
// ceil(3·perplexity) nearest neighbors and evaluates repulsion in
// O(N log N) per iteration. MethodExact builds dense affinities and
// evaluates all pairs; it needs O(N²) memory and suits small inputs.
//
// # Determinism
//
// With a fixed seed, results are identical across runs and do not depend
// on the number of workers.
//
// # Persistence
//
// The snapshot package stores embeddings in any blobstore.BlobStore
// (local disk, memory, S3, MinIO).
package tsnego
