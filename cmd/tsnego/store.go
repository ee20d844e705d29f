package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/tsnego/blobstore"
	minioStore "github.com/hupe1980/tsnego/blobstore/minio"
	s3Store "github.com/hupe1980/tsnego/blobstore/s3"
)

func openStore(ctx context.Context, kind string) (blobstore.BlobStore, error) {
	switch kind {
	case "", "local":
		return blobstore.NewLocalStore(*root), nil
	case "s3":
		if *bucket == "" {
			return nil, errors.New("s3 store requires -bucket")
		}
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			if *endpoint != "" {
				o.BaseEndpoint = aws.String(*endpoint)
				o.UsePathStyle = true
			}
		})
		return s3Store.NewStore(client, *bucket, *prefix), nil
	case "minio":
		if *bucket == "" || *endpoint == "" {
			return nil, errors.New("minio store requires -bucket and -endpoint")
		}
		client, err := minio.New(*endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(*accessKey, *secretKey, ""),
			Secure: !*insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minioStore.NewStore(client, *bucket, *prefix), nil
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}
