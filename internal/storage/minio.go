// Package storage keeps job attachment blobs in an S3 compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jwalitptl/dentallab-api/internal/config"
	"github.com/jwalitptl/dentallab-api/pkg/circuitbreaker"
)

type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
	breaker *circuitbreaker.CircuitBreaker
}

// NewMinioStore connects to the endpoint. Call EnsureBucket before the first
// upload.
func NewMinioStore(cfg config.MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		base = strings.TrimRight(client.EndpointURL().String(), "/")
	}
	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: base,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{Name: "object-storage"}),
	}, nil
}

func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Ping reports whether the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	return s.breaker.Read(func() error {
		_, err := s.client.BucketExists(ctx, s.bucket)
		return err
	})
}

func (s *MinioStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	err := s.breaker.Execute(func() error {
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: contentType,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.ObjectURL(key), nil
}

func (s *MinioStore) Remove(ctx context.Context, key string) error {
	err := s.breaker.Execute(func() error {
		return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// ObjectURL is the path-style URL of key.
func (s *MinioStore) ObjectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + s.bucket + "/" + strings.Join(segments, "/")
}
