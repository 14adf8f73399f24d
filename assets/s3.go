package assets

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jwstascii/jwstascii/logging"
	"github.com/jwstascii/jwstascii/site"
)

// PutObjectAPI is the part of the S3 client the store needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config locates the bucket that serves the site's images.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint for S3 compatible services.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client creates an S3 client. Credentials come from the default AWS
// chain unless an access key is configured.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Store uploads assets to a bucket serving the site's images path.
type S3Store struct {
	client PutObjectAPI
	bucket string
	logger *slog.Logger
}

// NewS3Store creates a store uploading to bucket.
func NewS3Store(client PutObjectAPI, bucket string, logger *slog.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		logger: logging.Default(logger).With("component", "asset_store", "backend", "s3"),
	}
}

// Put uploads the asset under images/<name>.
func (s *S3Store) Put(ctx context.Context, asset *Asset) (string, error) {
	key := path.Join(site.ImagesDir, asset.Name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(asset.Body),
		ContentType: aws.String(asset.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset to s3://%s/%s: %w", s.bucket, key, err)
	}

	s.logger.Debug("asset uploaded", "bucket", s.bucket, "key", key, "bytes", len(asset.Body))
	return site.Href(key), nil
}
