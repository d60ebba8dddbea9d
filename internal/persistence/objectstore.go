package persistence

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
)

// ObjectStore persists attachment files in a MinIO/S3 bucket. Only metadata
// lives in postgres; the bytes live here under an opaque storage key.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore connects to MinIO and ensures the attachment bucket exists.
func NewObjectStore(ctx context.Context, cfg config.MinioConfig, logger *zap.Logger) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		logger.Warn("unable to reach minio", zap.Error(err))
	} else if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("created attachment bucket", zap.String("bucket", cfg.Bucket))
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads a file and returns the storage key it was stored under. The
// key is generated here; callers never choose object names.
func (s *ObjectStore) Put(ctx context.Context, ticketID string, r io.Reader, size int64, contentType string) (string, error) {
	key := fmt.Sprintf("ticket_attachments/%s/%s", ticketID, uuid.NewString())
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

// PresignedURL returns a temporary download URL for a stored object.
func (s *ObjectStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

// Remove deletes a stored object.
func (s *ObjectStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
