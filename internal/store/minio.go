package store

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"invoicer/internal/logger"
)

// MinioStore keeps invoice PDFs in an S3-compatible bucket, for setups
// that archive documents on their own storage instead of Drive. Objects
// are keyed <client key>/<file name>; the returned reference is a
// presigned GET URL.
type MinioStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	log    zerolog.Logger
}

// NewMinioStore creates an S3-backed document store.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	const op = "NewMinioStore"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &MinioStore{
		client: client,
		bucket: bucket,
		expiry: 7 * 24 * time.Hour,
		log:    logger.WithComponent("minio"),
	}, nil
}

// Store uploads the document and returns a presigned link to it.
func (s *MinioStore) Store(ctx context.Context, data []byte, name, clientKey string) (string, error) {
	const op = "Store"

	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := name
	if clientKey != "" {
		key = clientKey + "/" + name
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("%s: failed to upload %s: %w", op, key, err)
	}

	ref, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("%s: failed to presign %s: %w", op, key, err)
	}

	s.log.Info().
		Str("bucket", s.bucket).
		Str("key", key).
		Msg("Document uploaded to object storage")

	return ref.String(), nil
}

// Delete removes a previously stored document, given the reference Store
// returned.
func (s *MinioStore) Delete(ctx context.Context, ref string) error {
	const op = "Delete"

	key, err := s.objectKeyFromRef(ref)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%s: failed to remove %s: %w", op, key, err)
	}

	s.log.Info().Str("bucket", s.bucket).Str("key", key).Msg("Document removed from object storage")
	return nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	found, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !found {
		s.log.Info().Str("bucket", s.bucket).Msg("Creating bucket")
		return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *MinioStore) objectKeyFromRef(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("not an object reference: %w", err)
	}
	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimPrefix(path, s.bucket+"/")
	if path == "" {
		return "", fmt.Errorf("no object key in reference %s", ref)
	}
	return path, nil
}
