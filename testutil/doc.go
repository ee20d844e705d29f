// Package testutil provides fixtures for tsnego tests and benchmarks.
//
//	rng := testutil.NewRNG(4711)
//	vectors, labels := rng.Blobs(3, 50, 8, 0.5)
//	rel := testutil.Collection(vectors)
//
//	emb, _ := embedder.Embed(ctx, rel, distance.NewVectorQuery(rel, distance.MetricEuclidean))
//	purity := testutil.NeighborPurity(testutil.Rows(emb), labels, 10)
package testutil
