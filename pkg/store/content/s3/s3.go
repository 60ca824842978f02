// Package s3 implements S3-based content storage.
//
// Each ContentID maps to one object under an optional key prefix. Whole-object
// PutObject/GetObject calls match the WebDAV access pattern, where PUT always
// replaces the full body.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/marmos91/dittodav/pkg/store/metadata"
)

// Client is the subset of the S3 API used by the store. *s3.Client
// satisfies it.
type Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3ContentStoreConfig configures the S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client
	Client Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	// Example: "dittodav/" results in keys like "dittodav/<content-id>"
	KeyPrefix string

	// Metrics receives per-operation observations (optional)
	Metrics S3Metrics
}

// S3ContentStore implements content.ContentStore on S3 or an S3-compatible
// service (MinIO, Localstack).
type S3ContentStore struct {
	client    Client
	bucket    string
	keyPrefix string
	metrics   S3Metrics
}

// NewS3ContentStore verifies bucket access and returns the store. The bucket
// must already exist.
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	m := cfg.Metrics
	if m == nil {
		m = noopMetrics{}
	}

	return &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		metrics:   m,
	}, nil
}

// getObjectKey returns the object key for a content ID.
func (s *S3ContentStore) getObjectKey(id metadata.ContentID) string {
	key := strings.TrimPrefix(string(id), "/")
	if s.keyPrefix == "" {
		return key
	}
	return strings.TrimSuffix(s.keyPrefix, "/") + "/" + key
}

// observe reports an S3 call to the metrics. A missing object is an answer,
// not a failed call.
func (s *S3ContentStore) observe(operation string, start time.Time, err error) {
	if isNotFound(err) {
		err = nil
	}
	s.metrics.ObserveOperation(operation, time.Since(start), err)
}

// isNotFound reports whether err is S3's "object does not exist" response.
// HeadObject returns a bare NotFound API error, GetObject returns NoSuchKey.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func (s *S3ContentStore) ReadContent(ctx context.Context, id metadata.ContentID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	s.observe("GetObject", start, err)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return &metricsReadCloser{ReadCloser: result.Body, metrics: s.metrics}, nil
}

func (s *S3ContentStore) WriteContent(ctx context.Context, id metadata.ContentID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateID(id); err != nil {
		return fmt.Errorf("content %s: %w", id, err)
	}

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.getObjectKey(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	s.observe("PutObject", start, err)
	if err != nil {
		return fmt.Errorf("failed to write content to S3: %w", err)
	}
	s.metrics.RecordBytes("write", int64(len(data)))
	return nil
}

func (s *S3ContentStore) GetContentSize(ctx context.Context, id metadata.ContentID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	start := time.Now()
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	s.observe("HeadObject", start, err)
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}
	return aws.ToInt64(result.ContentLength), nil
}

func (s *S3ContentStore) ContentExists(ctx context.Context, id metadata.ContentID) (bool, error) {
	if _, err := s.GetContentSize(ctx, id); err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the object. S3 DeleteObject succeeds for missing keys.
func (s *S3ContentStore) Delete(ctx context.Context, id metadata.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	s.observe("DeleteObject", start, err)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Close is a no-op; the S3 client owns no long-lived resources.
func (s *S3ContentStore) Close() error {
	return nil
}
