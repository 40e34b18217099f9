// Package storage uploads study exports to an S3-compatible bucket
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mrcode/bioclear/internal/config"
)

// Uploader stores export files and returns a link to them
type Uploader struct {
	client   *s3.Client
	endpoint string
	bucket   string
	prefix   string
}

// NewS3Client creates an S3 client. A custom URL switches to path-style
// addressing for S3-compatible stores.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3URL != "" {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		}
	}), nil
}

// NewUploader builds an Uploader from configuration
func NewUploader(ctx context.Context, cfg *config.Config) (*Uploader, error) {
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Uploader{
		client:   client,
		endpoint: strings.TrimRight(cfg.S3URL, "/"),
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
	}, nil
}

// Upload writes data under key and returns its link
func (u *Uploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	return Link(u.endpoint, u.bucket, key), nil
}

// ExportKey names an export object: <prefix>/<yyyy>/<mm>/bioclear_study_results-<stamp>.<ext>
func (u *Uploader) ExportKey(now time.Time, ext string) string {
	return ExportKey(u.prefix, now, ext)
}

// ExportKey builds an object key for an export written at now
func ExportKey(prefix string, now time.Time, ext string) string {
	now = now.UTC()
	name := fmt.Sprintf("bioclear_study_results-%s.%s", now.Format("20060102T150405Z"), strings.TrimPrefix(ext, "."))
	return path.Join(strings.Trim(prefix, "/"), now.Format("2006"), now.Format("01"), name)
}

// Link returns the URL of an object. Without a custom endpoint the AWS
// virtual-hosted style is used.
func Link(endpoint, bucket, key string) string {
	if endpoint == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key)
	}
	return fmt.Sprintf("%s/%s/%s", endpoint, bucket, key)
}
