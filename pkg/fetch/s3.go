package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/tunecache/internal/logger"
)

// S3API is the subset of the S3 client used by S3Fetcher.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures access to S3-compatible object storage.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// NewS3Client builds an S3 client from cfg.
//
// A custom endpoint (MinIO, Localstack) switches the client to path-style
// addressing. Without static credentials the default AWS credential chain is used.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	if cfg.Region != "" {
		configOptions = append(configOptions, awsConfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("S3 asset client initialized: region=%s, endpoint=%s", cfg.Region, cfg.Endpoint)
	return client, nil
}

// S3Fetcher fetches assets addressed as s3://bucket/key.
type S3Fetcher struct {
	client S3API
}

// NewS3Fetcher creates a fetcher over an S3 client.
func NewS3Fetcher(client S3API) *S3Fetcher {
	return &S3Fetcher{client: client}
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%s: %w", raw, ErrUnsupportedScheme)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%s: bucket and key are required", raw)
	}
	return bucket, key, nil
}

// Fetch downloads the object behind an s3:// URL.
func (f *S3Fetcher) Fetch(ctx context.Context, rawURL string) (*Asset, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrNetworkFetch)
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, mapS3Error(rawURL, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("fetch %s: reading body: %v: %w", rawURL, err, ErrNetworkFetch)
	}

	return &Asset{
		URL:         rawURL,
		ContentType: aws.ToString(out.ContentType),
		Data:        data,
	}, nil
}

func mapS3Error(rawURL string, err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &StatusError{URL: rawURL, StatusCode: 404}
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return &StatusError{URL: rawURL, StatusCode: 404}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return &StatusError{URL: rawURL, StatusCode: respErr.HTTPStatusCode()}
	}
	return fmt.Errorf("fetch %s: %v: %w", rawURL, err, ErrNetworkFetch)
}
