package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API the driver needs. Declared as an
// interface so tests can substitute a mock.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config configures the S3 driver. Endpoint and ForcePathStyle support
// S3-compatible services such as MinIO.
type S3Config struct {
	Bucket         string `env:"ATTACHMENTS_S3_BUCKET,required"`
	Region         string `env:"ATTACHMENTS_S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"ATTACHMENTS_S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"ATTACHMENTS_S3_SECRET_KEY"`
	Endpoint       string `env:"ATTACHMENTS_S3_ENDPOINT"`
	KeyPrefix      string `env:"ATTACHMENTS_S3_KEY_PREFIX"`
	BaseURL        string `env:"ATTACHMENTS_S3_BASE_URL"`
	ForcePathStyle bool   `env:"ATTACHMENTS_S3_FORCE_PATH_STYLE" envDefault:"false"`
}

// S3Driver stores attachment bytes in an S3 bucket.
type S3Driver struct {
	client    S3Client
	bucket    string
	keyPrefix string
	baseURL   string
}

// S3Option configures the S3 driver.
type S3Option func(*s3Options)

type s3Options struct {
	client     S3Client
	httpClient *http.Client
}

// WithS3Client sets a pre-configured S3 client, bypassing AWS config loading.
// Useful for testing with mocks.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) { o.client = client }
}

// WithHTTPClient sets a custom HTTP client for S3 requests.
func WithHTTPClient(client *http.Client) S3Option {
	return func(o *s3Options) { o.httpClient = client }
}

// NewS3Driver creates an S3-backed attachment byte driver.
func NewS3Driver(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Driver, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	options := &s3Options{}
	for _, opt := range opts {
		opt(options)
	}

	client := options.client
	if client == nil {
		awsOptions := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}
		if options.httpClient != nil {
			awsOptions = append(awsOptions, awsconfig.WithHTTPClient(options.httpClient))
		}

		awsConfig, err := awsconfig.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load AWS config: %v", ErrInvalidConfig, err)
		}

		client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.Endpoint, "/"), cfg.Bucket)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	keyPrefix := strings.Trim(cfg.KeyPrefix, "/")
	if keyPrefix != "" {
		keyPrefix += "/"
	}

	return &S3Driver{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: keyPrefix,
		baseURL:   baseURL,
	}, nil
}

func (d *S3Driver) Name() string { return "s3" }

func (d *S3Driver) Put(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(d.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := d.client.PutObject(ctx, input); err != nil {
		return classifyS3Error(err, "put")
	}
	return nil
}

func (d *S3Driver) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.objectKey(key)),
	})
	if err != nil {
		return nil, classifyS3Error(err, "get")
	}
	return out.Body, nil
}

func (d *S3Driver) Delete(ctx context.Context, key string) error {
	if _, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.objectKey(key)),
	}); err != nil {
		return classifyS3Error(err, "delete")
	}
	return nil
}

func (d *S3Driver) URL(key string) string {
	return d.baseURL + d.objectKey(key)
}

func (d *S3Driver) objectKey(key string) string {
	return d.keyPrefix + key
}

// classifyS3Error converts SDK errors into the package's sentinel errors.
func classifyS3Error(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "NoSuchKey" {
			return fmt.Errorf("%w: %v", ErrFileNotFound, err)
		}
		return fmt.Errorf("s3 %s failed (code: %s): %w", operation, apiErr.ErrorCode(), err)
	}

	return fmt.Errorf("s3 %s failed: %w", operation, err)
}
