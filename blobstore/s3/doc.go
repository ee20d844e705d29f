// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil { ... }
//
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "embeddings/")
//	ref, err := snapshot.Save(ctx, store, "", emb)
//
// # Features
//
//   - Range reads via GetObject
//   - Multipart streaming uploads via the S3 transfer manager
//   - CRC32C upload checksums
//   - Automatic pagination for listing
package s3
