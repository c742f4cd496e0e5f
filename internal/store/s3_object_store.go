package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// S3ObjectStore implements ObjectStore against an S3-compatible bucket
type S3ObjectStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewS3ObjectStore creates an object store backed by an S3-compatible
// bucket. Credentials arrive through the caller, never from a file.
func NewS3ObjectStore(
	endpoint, region, bucket string,
	accessKey, secretKey string,
	useSSL bool,
	logger *zap.Logger,
) (ObjectStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3ObjectStore{
		client: client,
		bucket: bucket,
		logger: logger,
	}, nil
}

// List returns every object version under prefix. Buckets with versioning
// enabled report older versions too; delete markers are skipped.
func (s *S3ObjectStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	opts := minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithVersions: true,
	}

	infos := make([]ObjectInfo, 0)
	for object := range s.client.ListObjects(ctx, s.bucket, opts) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, object.Err)
		}
		if object.IsDeleteMarker {
			continue
		}
		infos = append(infos, ObjectInfo{
			Key:        object.Key,
			VersionID:  object.VersionID,
			Size:       object.Size,
			UploadedAt: object.LastModified,
		})
	}
	return infos, nil
}

// Get fetches one object body, optionally pinned to a version
func (s *S3ObjectStore) Get(ctx context.Context, key, versionID string) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if versionID != "" {
		opts.VersionID = versionID
	}

	object, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer object.Close()

	body, err := io.ReadAll(object)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchVersion" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return body, nil
}

// Put uploads body under key, replacing the current version
func (s *S3ObjectStore) Put(ctx context.Context, key string, body []byte, opts PutOptions) error {
	putOpts := minio.PutObjectOptions{
		ContentType: opts.ContentType,
	}
	if opts.PublicRead {
		putOpts.UserMetadata = map[string]string{"x-amz-acl": "public-read"}
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), putOpts)
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	s.logger.Debug("uploaded object",
		zap.String("key", key),
		zap.Int64("size", info.Size),
		zap.String("version_id", info.VersionID),
	)
	return nil
}

// Ping verifies the bucket is reachable
func (s *S3ObjectStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// Close is a no-op; the underlying HTTP client needs no teardown
func (s *S3ObjectStore) Close() {}
