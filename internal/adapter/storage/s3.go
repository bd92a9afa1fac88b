package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hive-corporation/ioc-console/internal/logging"
)

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible stores such as MinIO
	AccessKeyID     string
	SecretAccessKey string
	Timeout         time.Duration
}

// putObjectAPI is the slice of the S3 client the store needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads export artefacts to a single bucket.
type S3Store struct {
	client putObjectAPI
	bucket string
	log    logging.Logger
}

func NewS3Store(ctx context.Context, cfg S3Config, log logging.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("invalid S3 configuration: bucket is required")
	}

	awsCfg, err := buildAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newS3Store(client, cfg.Bucket, log), nil
}

func newS3Store(client putObjectAPI, bucket string, log logging.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, log: log.With("component", "s3", "bucket", bucket)}
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	start := time.Now()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.log.Error(ctx, "failed to put object", "key", key, "error", err)
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	s.log.Info(ctx, "object stored",
		"key", key,
		"size_bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func buildAWSConfig(ctx context.Context, cfg S3Config) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	optFns = append(optFns, awsconfig.WithHTTPClient(&http.Client{Timeout: timeout}))

	return awsconfig.LoadDefaultConfig(ctx, optFns...)
}
