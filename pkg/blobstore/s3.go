package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var loadDefaultAWSConfig = config.LoadDefaultConfig

// S3Uploader writes blobs into an S3 bucket or an S3 compatible store such
// as MinIO.
type S3Uploader struct {
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
	// pathStyle addresses objects as <endpoint>/<bucket>/<key>.
	pathStyle bool
	configErr error
}

func NewS3Uploader(ctx context.Context, cfg Config) (*S3Uploader, error) {
	u := &S3Uploader{
		bucket:    cfg.Container,
		region:    cfg.S3Region,
		endpoint:  strings.TrimRight(cfg.S3Endpoint, "/"),
		pathStyle: cfg.S3UsePathStyle || cfg.S3Endpoint != "",
	}
	if u.bucket == "" {
		u.configErr = fmt.Errorf("%w: bucket name is empty", ErrNotConfigured)
		return u, nil
	}
	if u.region == "" {
		u.region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(u.region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	u.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if u.endpoint != "" {
			o.BaseEndpoint = aws.String(u.endpoint)
		}
		o.UsePathStyle = u.pathStyle
	})
	return u, nil
}

func (u *S3Uploader) Upload(ctx context.Context, obj Object) (string, error) {
	if u.configErr != nil {
		return "", u.configErr
	}
	if err := obj.validate(); err != nil {
		return "", err
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(obj.Name),
		Body:          bytes.NewReader(obj.Data),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ContentType:   aws.String(obj.ContentType),
		Metadata:      obj.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", obj.Name, err)
	}
	return u.objectURL(obj.Name), nil
}

func (u *S3Uploader) Ping(ctx context.Context) error {
	if u.configErr != nil {
		return u.configErr
	}
	if _, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", u.bucket, err)
	}
	return nil
}

func (u *S3Uploader) objectURL(key string) string {
	escaped := url.PathEscape(key)
	if u.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", u.endpoint, u.bucket, escaped)
	}
	if u.pathStyle {
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", u.region, u.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, escaped)
}
