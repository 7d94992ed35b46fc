// Package archive uploads produced log artifacts to S3-compatible object
// storage. It runs strictly after processing; nothing flows back from
// archival into parsing.
package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Config holds the connection and destination settings.
type Config struct {
	// Endpoint overrides the AWS endpoint, for S3-compatible stores
	// (MinIO, OpenStack Swift S3 shims). Empty means stock AWS.
	Endpoint  string
	Region    string
	Bucket    string
	KeyPrefix string

	// Static credentials. Empty means the default provider chain
	// (environment, shared config, instance role).
	AccessKey string
	SecretKey string
}

// Uploader pushes files into one bucket under a key prefix.
type Uploader struct {
	client *s3.Client
	cfg    Config
	logger *zap.Logger
}

// New builds the S3 client.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path-style addressing is what most S3-compatible stores
			// expect.
			o.UsePathStyle = true
		}
	})

	return &Uploader{client: client, cfg: cfg, logger: logger}, nil
}

// UploadFile uploads a single file under the configured prefix.
func (u *Uploader) UploadFile(ctx context.Context, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("archive: opening %s: %w", filePath, err)
	}
	defer f.Close()

	key := path.Join(u.cfg.KeyPrefix, filepath.Base(filePath))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("archive: uploading %s: %w", key, err)
	}
	u.logger.Info("artifact uploaded",
		zap.String("bucket", u.cfg.Bucket),
		zap.String("key", key),
	)
	return nil
}

// UploadDir uploads every regular file in a directory and returns how many
// were uploaded. The first failure stops the upload.
func (u *Uploader) UploadDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("archive: listing %s: %w", dir, err)
	}

	uploaded := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := u.UploadFile(ctx, filepath.Join(dir, e.Name())); err != nil {
			return uploaded, err
		}
		uploaded++
	}
	return uploaded, nil
}
