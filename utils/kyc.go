package utils

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/logging"
)

// ObjectStore wraps the S3-compatible bucket holding KYC documents. Documents
// are never served directly; access goes through short-lived presigned URLs.
type ObjectStore struct {
	client  *minio.Client
	bucket  string
	timeout time.Duration
}

const presignExpiry = time.Hour

func NewObjectStore(cfg *config.Config) (*ObjectStore, error) {
	client, err := minio.New(cfg.StorageEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.StorageAccessKey, cfg.StorageSecret, ""),
		Secure: cfg.StorageUseSSL,
	})
	if err != nil {
		return nil, err
	}
	store := &ObjectStore{
		client:  client,
		bucket:  cfg.StorageBucket,
		timeout: cfg.ObjectStoreTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ObjectStoreTimeout)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.StorageBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.StorageBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		logging.Logger.Info("kyc bucket created", zap.String("bucket", cfg.StorageBucket))
	}
	return store, nil
}

// DocumentKey builds the canonical object key for a KYC upload.
func DocumentKey(userID int64, docType, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	return fmt.Sprintf("kyc/%d/%s_%d.%s", userID, docType, time.Now().UTC().Unix(), ext)
}

// PresignedUpload returns a PUT URL the client uploads the document with.
func (s *ObjectStore) PresignedUpload(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, presignExpiry)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// PresignedDownload returns a GET URL for compliance review.
func (s *ObjectStore) PresignedDownload(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, presignExpiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Remove deletes a document after a rejection cleanup.
func (s *ObjectStore) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
