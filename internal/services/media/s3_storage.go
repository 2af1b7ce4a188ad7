package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
)

// S3Storage keeps listing images in a public-read bucket; image URLs are
// plain object URLs rather than presigned ones because published listings
// are visible to everyone.
type S3Storage struct {
	client  *minio.Client
	bucket  string
	baseURL string

	ensureOnce sync.Once
	ensureErr  error
}

func NewS3Storage(client *minio.Client, bucket, baseURL string) *S3Storage {
	return &S3Storage{
		client:  client,
		bucket:  strings.TrimSpace(bucket),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})

	if s.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", s.bucket, s.ensureErr)
	}

	return nil
}

func (s *S3Storage) PutImage(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if key == "" || body == nil || size <= 0 {
		return ErrInvalidImage
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object to s3: %w", err)
	}

	return nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if s.client == nil || key == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *S3Storage) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
}

// ObjectKey maps a public URL back to its bucket key. URLs minted by a
// different storage configuration are reported as unknown.
func (s *S3Storage) ObjectKey(publicURL string) (string, bool) {
	prefix := s.baseURL + "/" + s.bucket + "/"
	if s.baseURL == "" || s.bucket == "" || !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}

	key := strings.TrimPrefix(publicURL, prefix)
	if key == "" {
		return "", false
	}
	return key, true
}
