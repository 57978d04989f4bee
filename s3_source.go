package lumen

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3SourceConfig configures the S3 CSV dataset source.
type S3SourceConfig struct {
	// Bucket holding the CSV objects. Empty disables the source.
	Bucket string `yaml:"bucket"`

	// Region of the bucket (default: us-east-1).
	Region string `yaml:"region"`

	// Endpoint overrides the S3 endpoint for compatible services (MinIO).
	Endpoint string `yaml:"endpoint"`

	// AccessKeyID and SecretAccessKey for static credentials. Prefer IAM
	// roles or environment variables; do not commit credentials.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// Prefix is prepended to every requested object key.
	Prefix string `yaml:"prefix"`

	// UsePathStyle selects path-style addressing.
	UsePathStyle bool `yaml:"use_path_style"`
}

// S3Source fetches CSV objects from S3 (or an S3-compatible store) and
// parses them into Datasets. It serves the data-catalog side of the BI
// application: saved extracts live as CSV objects keyed per dataset.
type S3Source struct {
	client *s3.Client
	config S3SourceConfig
}

// NewS3Source builds the S3 client.
func NewS3Source(ctx context.Context, cfg S3SourceConfig) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 source: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &S3Source{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		config: cfg,
	}, nil
}

// FetchCSV downloads one CSV object and parses it into a Dataset.
func (s *S3Source) FetchCSV(ctx context.Context, key string) (Dataset, error) {
	if key == "" {
		return nil, errors.New("s3 source: object key is required")
	}
	fullKey := key
	if s.config.Prefix != "" {
		fullKey = path.Join(s.config.Prefix, key)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch s3://%s/%s: %w", s.config.Bucket, fullKey, err)
	}
	defer func() { _ = out.Body.Close() }()

	ds, err := ReadCSV(out.Body)
	if err != nil {
		return nil, fmt.Errorf("parse s3://%s/%s: %w", s.config.Bucket, fullKey, err)
	}
	return ds, nil
}
