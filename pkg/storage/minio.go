package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/DiscordEmotes/website/config"
)

// ErrObjectNotFound is returned by Get when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// Store is a content-addressed object store for emote images. Keys have the
// form "<guild_id>/<sha224-hex>.<png|jpg>", so a second write of identical
// bytes lands on the same key and is a safe no-op.
type Store struct {
	client     *minio.Client
	bucket     string
	cdnBaseURL string
}

func Connect(cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bucket := cfg.Storage.Bucket
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		log.Info().Str("bucket", bucket).Msg("Created MinIO bucket")
	}

	// Emote images are public; the CDN serves them straight from the bucket.
	policy := fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [
			{
				"Action": ["s3:GetObject"],
				"Effect": "Allow",
				"Principal": "*",
				"Resource": ["arn:aws:s3:::%s/*"]
			}
		]
	}`, bucket)
	if err := client.SetBucketPolicy(ctx, bucket, policy); err != nil {
		log.Warn().Err(err).Str("bucket", bucket).Msg("Failed to set public policy on bucket")
	}

	log.Info().Str("endpoint", cfg.Storage.Endpoint).Msg("Connected to MinIO")

	return &Store{
		client:     client,
		bucket:     bucket,
		cdnBaseURL: cfg.Storage.CDNBaseURL,
	}, nil
}

// Put writes an emote image under its content-derived key. Overwriting an
// existing key with the same bytes is harmless, which is exactly what
// happens when two uploads of the same image race.
func (s *Store) Put(ctx context.Context, objectKey string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", objectKey, err)
	}
	return nil
}

// Get streams an object for serving. Returns ErrObjectNotFound when the key
// does not exist.
func (s *Store) Get(ctx context.Context, objectKey string) (io.ReadCloser, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object %s: %w", objectKey, err)
	}

	// GetObject is lazy; Stat forces the first request so missing keys
	// surface here rather than on first read.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", fmt.Errorf("failed to stat object %s: %w", objectKey, err)
	}

	return obj, stat.ContentType, nil
}

// Delete removes an object. Absence is not an error: the caller may be
// cleaning up after a record whose file already vanished.
func (s *Store) Delete(ctx context.Context, objectKey string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to delete object %s: %w", objectKey, err)
	}
	return nil
}

// URL returns the public CDN URL for an object key.
func (s *Store) URL(objectKey string) string {
	return fmt.Sprintf("%s/%s/%s", s.cdnBaseURL, s.bucket, objectKey)
}
