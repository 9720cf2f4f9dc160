// Package storage reads and writes capture images in an S3-compatible
// object store.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/logger"
	"github.com/tphakala/geocapture/internal/observability/metrics"
)

const (
	DefaultRegion       = "us-east-1"
	DefaultMaxImageSize = 25 << 20
)

var (
	ErrMalformedURL   = errors.NewStd("malformed object URL")
	ErrObjectNotFound = errors.NewStd("object not found")
	ErrObjectTooLarge = errors.NewStd("object exceeds maximum size")
)

// Config holds the object store settings.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Endpoint is set for S3-compatible services; requests then use path-style addressing
	Endpoint string
	// PublicBaseURL, when set, prefixes public object URLs instead of the bucket URL
	PublicBaseURL string
	MaxObjectSize int64
}

// objectAPI is the subset of the S3 client used here.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store implements object download and upload on one bucket.
type S3Store struct {
	cfg     Config
	client  objectAPI
	metrics *metrics.StorageMetrics
	log     logger.Logger
}

// Option configures an S3Store.
type Option func(*options)

type options struct {
	httpClient *http.Client
	metrics    *metrics.StorageMetrics
	log        logger.Logger
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithMetrics(m *metrics.StorageMetrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates an S3Store. Static credentials are used when both keys are
// set; otherwise the SDK default chain applies.
func New(ctx context.Context, cfg Config, opts ...Option) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.Newf("object store bucket is required").
			Component("storage").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.MaxObjectSize <= 0 {
		cfg.MaxObjectSize = DefaultMaxImageSize
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	if o.httpClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(o.httpClient))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.New(fmt.Errorf("load AWS config: %w", err)).
			Component("storage").
			Category(errors.CategoryConfiguration).
			Build()
	}

	client := s3.NewFromConfig(awsCfg, func(so *s3.Options) {
		if cfg.Endpoint != "" {
			so.BaseEndpoint = aws.String(cfg.Endpoint)
			so.UsePathStyle = true
		}
	})

	return newStore(cfg, client, o), nil
}

func newStore(cfg Config, client objectAPI, o options) *S3Store {
	if o.log == nil {
		o.log = logger.Global().Module("storage")
	}
	return &S3Store{cfg: cfg, client: client, metrics: o.metrics, log: o.log}
}

// Bucket returns the configured bucket name.
func (s *S3Store) Bucket() string {
	return s.cfg.Bucket
}

// Download reads an object fully. Objects larger than the configured
// maximum fail with ErrObjectTooLarge.
func (s *S3Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.metrics.RecordOperation(metrics.OpDownload, metrics.StatusError, 0)
		return nil, s.wrap(classifyGetError(err), "download", key)
	}
	defer func() { _ = out.Body.Close() }()

	limit := s.cfg.MaxObjectSize
	if out.ContentLength != nil && *out.ContentLength > limit {
		s.metrics.RecordOperation(metrics.OpDownload, metrics.StatusRejected, 0)
		return nil, s.wrap(fmt.Errorf("%w: %d bytes", ErrObjectTooLarge, *out.ContentLength), "download", key)
	}

	data, err := io.ReadAll(io.LimitReader(out.Body, limit+1))
	if err != nil {
		s.metrics.RecordOperation(metrics.OpDownload, metrics.StatusError, 0)
		return nil, s.wrap(fmt.Errorf("read object body: %w", err), "download", key)
	}
	if int64(len(data)) > limit {
		s.metrics.RecordOperation(metrics.OpDownload, metrics.StatusRejected, 0)
		return nil, s.wrap(fmt.Errorf("%w: more than %d bytes", ErrObjectTooLarge, limit), "download", key)
	}

	s.metrics.RecordOperation(metrics.OpDownload, metrics.StatusSuccess, len(data))
	s.log.Debug("Object downloaded", logger.String("key", key), logger.Int("bytes", len(data)))
	return data, nil
}

// Upload writes data under key and returns the public URL of the object.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		s.metrics.RecordOperation(metrics.OpUpload, metrics.StatusError, 0)
		return "", s.wrap(err, "upload", key)
	}

	s.metrics.RecordOperation(metrics.OpUpload, metrics.StatusSuccess, len(data))
	url := s.PublicURL(key)
	s.log.Debug("Object uploaded", logger.String("key", key), logger.Int("bytes", len(data)))
	return url, nil
}

// PublicURL returns the URL under which key is publicly reachable.
func (s *S3Store) PublicURL(key string) string {
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	case s.cfg.Endpoint != "":
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.cfg.Bucket, key)
	}
}

// ObjectKey derives the object key of a stored URL for this bucket.
func (s *S3Store) ObjectKey(rawURL string) (string, error) {
	return ObjectKeyFromURL(rawURL, s.cfg.Bucket)
}

func classifyGetError(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	}
	return err
}

func (s *S3Store) wrap(err error, operation, key string) error {
	category := errors.CategoryObjectStorage
	if errors.Is(err, ErrObjectNotFound) {
		category = errors.CategoryNotFound
	}
	return errors.New(err).
		Component("storage").
		Category(category).
		Context("operation", operation).
		Context("bucket", s.cfg.Bucket).
		Context("key", key).
		Build()
}
