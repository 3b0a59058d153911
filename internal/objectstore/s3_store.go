package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config holds configuration for S3 connection
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	// PageSize caps the keys returned per list call; zero uses the store default
	PageSize int32
}

// S3Store implements ObjectStore for AWS S3 or S3-compatible storage
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	pageSize int32
	logger   *slog.Logger
}

// NewS3Client builds an S3 client from the given configuration. The SDK retryer
// is disabled: callers decide whether a failed call is worth repeating.
func NewS3Client(ctx context.Context, s3Config S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(s3Config.Region),
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}

	if s3Config.AccessKeyID != "" && s3Config.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s3Config.AccessKeyID,
			s3Config.SecretAccessKey,
			"",
		)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s3Config.Endpoint != "" {
			// Custom endpoint (e.g., MinIO)
			o.BaseEndpoint = aws.String(s3Config.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Store creates a new S3Store instance
func NewS3Store(ctx context.Context, s3Config S3Config, logger *slog.Logger) (*S3Store, error) {
	if s3Config.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	client, err := NewS3Client(ctx, s3Config)
	if err != nil {
		return nil, err
	}

	logger.Info("S3 client initialized",
		"bucket", s3Config.Bucket,
		"region", s3Config.Region,
		"custom_endpoint", s3Config.Endpoint != "",
	)

	return NewS3StoreFromClient(client, s3Config.Bucket, s3Config.PageSize, logger), nil
}

// NewS3StoreFromClient wraps an existing client
func NewS3StoreFromClient(client *s3.Client, bucket string, pageSize int32, logger *slog.Logger) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		pageSize: pageSize,
		logger:   logger,
	}
}

// List implements ObjectStore.List
func (s *S3Store) List(ctx context.Context, prefix, delimiter string) (*ListResult, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	if s.pageSize > 0 {
		input.MaxKeys = aws.Int32(s.pageSize)
	}

	result := &ListResult{}
	pages := 0

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, &StoreError{Op: "list", Key: prefix, Err: err}
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("list", prefix, err)
		}
		pages++

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			result.Objects = append(result.Objects, ObjectInfo{
				Key:          *obj.Key,
				LastModified: aws.ToTime(obj.LastModified),
				Size:         aws.ToInt64(obj.Size),
			})
		}

		for _, cp := range page.CommonPrefixes {
			if cp.Prefix != nil {
				result.CommonPrefixes = append(result.CommonPrefixes, *cp.Prefix)
			}
		}
	}

	s.logger.Debug("Listed objects",
		"prefix", prefix,
		"delimiter", delimiter,
		"pages", pages,
		"objects", len(result.Objects),
		"common_prefixes", len(result.CommonPrefixes),
	)

	return result, nil
}

// Get implements ObjectStore.Get
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("get", key, err)
	}
	return out.Body, nil
}

// Put implements ObjectStore.Put
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return classify("put", key, err)
	}
	return nil
}

// Delete implements ObjectStore.Delete
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		err = classify("delete", key, err)
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

// Copy implements ObjectStore.Copy
func (s *S3Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(s.bucket, srcKey)),
	})
	if err != nil {
		return classify("copy", srcKey, err)
	}
	return nil
}

// Bucket implements ObjectStore.Bucket
func (s *S3Store) Bucket() string {
	return s.bucket
}

// Close implements ObjectStore.Close
func (s *S3Store) Close() error {
	// S3 client doesn't require explicit cleanup
	return nil
}

// copySource escapes each key segment while keeping the separators intact
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// classify maps SDK failures onto the package error taxonomy
func classify(op, key string, err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &StoreError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", ErrNotFound, err)}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return &StoreError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", ErrNotFound, err)}
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &StoreError{Op: op, Key: key, Err: err}
	}

	retryable := retry.IsErrorRetryables(retry.DefaultRetryables).IsErrorRetryable(err) == aws.TrueTernary ||
		retry.IsErrorThrottles(retry.DefaultThrottles).IsErrorThrottle(err) == aws.TrueTernary

	return &StoreError{Op: op, Key: key, Retryable: retryable, Err: err}
}

var _ ObjectStore = (*S3Store)(nil)
