// Package s3 provides a cache entry store backed by an S3-compatible bucket.
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
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/fruitsalade/rested/internal/logging"
	"github.com/fruitsalade/rested/internal/metrics"
	"github.com/fruitsalade/rested/pkg/store"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string // object key prefix, e.g. "cache/"
	AccessKey string
	SecretKey string
	Region    string
}

// Store keeps every cache entry as one object.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3 store and makes sure the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true // Required for MinIO
	})

	s := &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
	if err := s.ensureBucket(ctx); err != nil {
		logging.Error("bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
	}
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		_, createErr := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(s.bucket),
		})
		if createErr != nil {
			return fmt.Errorf("bucket %s does not exist and cannot create: %w", s.bucket, createErr)
		}
		logging.Info("created S3 bucket", zap.String("bucket", s.bucket))
	}
	return nil
}

// Get reads the object for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("s3", "get", time.Since(start)) }()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// Set uploads the object for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("s3", "set", time.Since(start)) }()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(value),
		ContentLength: aws.Int64(int64(len(value))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Remove deletes the object for key.
func (s *Store) Remove(ctx context.Context, key string) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("s3", "remove", time.Since(start)) }()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Keys returns the cache keys starting with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, s.cacheKey(aws.ToString(obj.Key)))
		}
	}
	return keys, nil
}

func (s *Store) objectKey(key string) string {
	return s.prefix + key
}

func (s *Store) cacheKey(objectKey string) string {
	return strings.TrimPrefix(objectKey, s.prefix)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
