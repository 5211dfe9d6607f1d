package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/knockmap/knockmap/internal/config"
)

// Uploader stores an object.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, data []byte) error
}

// S3Uploader implements Uploader using the AWS SDK v2.
type S3Uploader struct {
	client *s3.Client
}

// NewS3Uploader creates an uploader with the given profile and region.
func NewS3Uploader(ctx context.Context, profile, region string) (*S3Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Uploader{client: s3.NewFromConfig(cfg)}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, bucket, key string, data []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("uploading to s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Key names a snapshot: <prefix>/<board>/<UTC timestamp>.csv.
func Key(prefix, slug string, at time.Time) string {
	return path.Join(prefix, slug, at.UTC().Format("20060102T150405Z")+".csv")
}

// Publish uploads a snapshot to the configured bucket and returns its URI.
func Publish(ctx context.Context, up Uploader, cfg config.ExportConfig, slug string, data []byte, at time.Time) (string, error) {
	if cfg.Bucket == "" {
		return "", fmt.Errorf("export.bucket is not configured")
	}
	key := Key(cfg.Prefix, slug, at)
	if err := up.Upload(ctx, cfg.Bucket, key, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", cfg.Bucket, key), nil
}
