package media

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrInvalidImage  = errors.New("unsupported image type")
	ErrImageTooLarge = errors.New("image too large")
)

const defaultMaxImageSize = 5 << 20

type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	PutImage(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	ObjectKey(publicURL string) (string, bool)
}

type Service struct {
	storage      ObjectStorage
	maxSizeBytes int64
	now          func() time.Time
}

type StoredImage struct {
	Key string
	URL string
}

func NewService(storage ObjectStorage, maxSizeBytes int64) *Service {
	if maxSizeBytes <= 0 {
		maxSizeBytes = defaultMaxImageSize
	}

	return &Service{
		storage:      storage,
		maxSizeBytes: maxSizeBytes,
		now:          time.Now,
	}
}

// ValidateImage rejects non-image payloads and oversized files. It is called
// before any upload or moderation work so a bad file fails fast.
func (s *Service) ValidateImage(contentType string, size int64) error {
	if size <= 0 {
		return ErrInvalidImage
	}
	if size > s.maxSizeBytes {
		return ErrImageTooLarge
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return ErrInvalidImage
	}
	return nil
}

func (s *Service) UploadListingImage(ctx context.Context, userID int64, fileName, contentType string, body io.Reader, size int64) (StoredImage, error) {
	if s.storage == nil {
		return StoredImage{}, fmt.Errorf("object storage is not configured")
	}
	if userID <= 0 || body == nil {
		return StoredImage{}, ErrInvalidImage
	}
	if err := s.ValidateImage(contentType, size); err != nil {
		return StoredImage{}, err
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return StoredImage{}, fmt.Errorf("ensure bucket: %w", err)
	}

	key, err := s.buildObjectKey(userID, fileName)
	if err != nil {
		return StoredImage{}, fmt.Errorf("build object key: %w", err)
	}

	if err := s.storage.PutImage(ctx, key, body, size, contentType); err != nil {
		return StoredImage{}, fmt.Errorf("put object: %w", err)
	}

	return StoredImage{Key: key, URL: s.storage.PublicURL(key)}, nil
}

// DeleteByURL removes the backing object for a stored image URL. Unknown
// URLs are ignored so stale database rows never block a listing delete.
func (s *Service) DeleteByURL(ctx context.Context, publicURL string) error {
	if s.storage == nil {
		return nil
	}
	key, ok := s.storage.ObjectKey(publicURL)
	if !ok {
		return nil
	}
	return s.storage.Delete(ctx, key)
}

func (s *Service) MaxImageSizeBytes() int64 {
	return s.maxSizeBytes
}

func (s *Service) buildObjectKey(userID int64, fileName string) (string, error) {
	rnd := make([]byte, 8)
	if _, err := rand.Read(rnd); err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if ext == "" {
		ext = ".jpg"
	}

	stamp := s.now().UTC().Format("20060102T150405")
	return fmt.Sprintf("listings/%d/%s_%s%s", userID, stamp, hex.EncodeToString(rnd), ext), nil
}
