package images

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store keeps images in one bucket. References are the public object
// URLs.
type S3Store struct {
	client *minio.Client
	bucket string
	base   string
}

func NewS3Store(ctx context.Context, config S3Config) (*S3Store, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", config.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", config.Bucket, err)
		}
	}
	return &S3Store{
		client: client,
		bucket: config.Bucket,
		base:   strings.TrimRight(client.EndpointURL().String(), "/") + "/" + config.Bucket + "/",
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, contentType string, r io.Reader, size int64) (string, error) {
	key, err := objectKey(contentType)
	if err != nil {
		return "", err
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("put image %s: %w", key, err)
	}
	return s.base + key, nil
}

func (s *S3Store) Destroy(ctx context.Context, ref string) error {
	key, ok := s.keyOf(ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove image %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) keyOf(ref string) (string, bool) {
	key, ok := strings.CutPrefix(ref, s.base)
	if !ok || !strings.HasPrefix(key, keyPrefix) || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
