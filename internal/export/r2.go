package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ObjectPutter is the slice of the S3 API the uploader needs; *s3.Client satisfies it
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Config holds CloudFlare R2 credentials
type R2Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// NewR2Client builds an S3 client pointed at an R2 endpoint
func NewR2Client(ctx context.Context, cfg R2Config) (*s3.Client, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("r2 endpoint and credentials are required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading r2 config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	}), nil
}

// Uploader writes JSON reports to a bucket
type Uploader struct {
	client ObjectPutter
	bucket string
	log    zerolog.Logger
}

func NewUploader(client ObjectPutter, bucket string, log zerolog.Logger) *Uploader {
	return &Uploader{
		client: client,
		bucket: bucket,
		log:    log.With().Str("component", "uploader").Logger(),
	}
}

// AuditKey is the object key for an audit taken at ts
func AuditKey(ts time.Time) string {
	return path.Join("audits", ts.UTC().Format("20060102T150405Z")+".json")
}

// UploadJSON marshals v and stores it under key
func (u *Uploader) UploadJSON(ctx context.Context, key string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", key, err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("error uploading %s: %w", key, err)
	}

	u.log.Info().Str("bucket", u.bucket).Str("key", key).Int("bytes", len(body)).Msg("Uploaded report")
	return nil
}

// UploadAudit stores an audit summary under its timestamped key and returns the key
func (u *Uploader) UploadAudit(ctx context.Context, ts time.Time, summary any) (string, error) {
	key := AuditKey(ts)
	return key, u.UploadJSON(ctx, key, summary)
}
