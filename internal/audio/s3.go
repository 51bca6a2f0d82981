package audio

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/davidahmann/callrelay/internal/speech"
)

// S3Config describes the bucket clips are uploaded to. Endpoint switches to
// path-style addressing for S3-compatible servers such as MinIO or LocalStack.
type S3Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string
	// AccessKeyID and SecretAccessKey are optional; the default credential
	// chain is used when both are empty.
	AccessKeyID     string
	SecretAccessKey string
	// Timeout bounds each upload; DefaultTimeout when zero.
	Timeout time.Duration
}

// S3Store uploads clips with PutObject and reports them as s3:// URLs.
type S3Store struct {
	client  objectPutter
	bucket  string
	prefix  string
	timeout time.Duration
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Store resolves credentials through the default AWS chain, or the static
// keys in cfg when both are set.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("missing bucket")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	store := newS3Store(client, cfg.Bucket, cfg.Prefix)
	if cfg.Timeout > 0 {
		store.timeout = cfg.Timeout
	}
	return store, nil
}

func newS3Store(client objectPutter, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), timeout: DefaultTimeout}
}

// Save uploads clip under the store prefix. The upload is abandoned after the
// store timeout even when ctx has no deadline.
func (s *S3Store) Save(ctx context.Context, key string, clip speech.Audio) (string, error) {
	objectKey := key + Extension(clip.ContentType)
	if s.prefix != "" {
		objectKey = path.Join(s.prefix, objectKey)
	}
	contentType := clip.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(clip.Data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(clip.Data))),
	})
	if err != nil {
		return "", fmt.Errorf("put audio object: %w", err)
	}
	return "s3://" + s.bucket + "/" + objectKey, nil
}
