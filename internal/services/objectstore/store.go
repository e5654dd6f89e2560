package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"checkproof/internal/config"
	"checkproof/internal/services"
)

// ErrNotConfigured is returned when no endpoint is configured.
var ErrNotConfigured = errors.New("object store not configured")

// Store uploads evidence photos to an S3-compatible bucket.
type Store struct {
	client *minio.Client
	bucket string

	mu      sync.Mutex
	ensured bool
}

// New creates a Store for the configured endpoint. No network call is made:
// the bucket is checked (and created when missing) before the first upload so
// an offline daemon can still start.
func New(cfg config.ObjectStore) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrNotConfigured
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "init", "invalid endpoint", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Bucket returns the target bucket name.
func (s *Store) Bucket() string { return s.bucket }

func (s *Store) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return services.Wrap(services.ErrTransient, "objectstore", "bucket exists", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return services.Wrap(services.ErrTransient, "objectstore", "make bucket", s.bucket, err)
		}
	}
	s.ensured = true
	return nil
}

// Put uploads data under key. Re-putting the same key overwrites the object.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "objectstore", "put", fmt.Sprintf("%s/%s", s.bucket, key), err)
	}
	return nil
}
