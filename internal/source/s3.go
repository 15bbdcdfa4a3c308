package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config contains the connection settings for an S3-compatible store
type S3Config struct {
	Endpoint        string // empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Timeout         time.Duration
}

// S3Fetcher downloads audio objects into staged files
type S3Fetcher struct {
	client   *s3.Client
	timeout  time.Duration
	maxBytes int64
	logger   *slog.Logger
}

// NewS3Fetcher creates a fetcher with static credentials. A custom endpoint
// switches to path-style addressing for S3-compatible stores.
func NewS3Fetcher(cfg S3Config, maxBytes int64, logger *slog.Logger) (*S3Fetcher, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("S3 credentials are not configured")
	}

	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	options := []func(*s3.Options){
		func(o *s3.Options) {
			o.Credentials = creds
			o.Region = cfg.Region
		},
	}

	if cfg.Endpoint != "" {
		options = append(options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Fetcher{
		client:   s3.New(s3.Options{}, options...),
		timeout:  cfg.Timeout,
		maxBytes: maxBytes,
		logger:   logger,
	}, nil
}

// Fetch downloads s3://bucket/key into a staged temporary file
func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string) (*Staged, error) {
	if err := CheckExtension(key); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	startTime := time.Now()
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if size := aws.ToInt64(out.ContentLength); f.maxBytes > 0 && size > f.maxBytes {
		return nil, fmt.Errorf("s3://%s/%s: %w: %d bytes", bucket, key, ErrTooLarge, size)
	}

	staged, err := Stage(out.Body, key, f.maxBytes)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Fetched S3 object",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.Int64("bytes", staged.Size),
		slog.Duration("elapsed", time.Since(startTime)),
	)

	return staged, nil
}
