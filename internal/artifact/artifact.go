// Package artifact uploads result and checkpoint files to object storage.
package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Uploader copies a local file to remote storage and returns its location.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

// Nop discards uploads.
type Nop struct{}

// Upload returns an empty location.
func (Nop) Upload(context.Context, string, string) (string, error) { return "", nil }

// S3Config addresses a bucket. Endpoint and PathStyle allow S3-compatible
// servers such as MinIO.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// NewS3Client creates an S3 client from cfg. Without static keys the default
// credential chain is used.
func NewS3Client(cfg S3Config) (s3iface.S3API, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.PathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session failed: %w", err)
	}
	return s3.New(sess), nil
}

// S3Uploader puts files into a bucket under a key prefix.
type S3Uploader struct {
	client s3iface.S3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Uploader creates an uploader.
func NewS3Uploader(client s3iface.S3API, bucket, prefix string, logger *slog.Logger) *S3Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Uploader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With("component", "artifact"),
	}
}

// Upload puts localPath at prefix/key and returns its s3:// URL.
func (u *S3Uploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact failed: %w", err)
	}
	defer f.Close()

	objectKey := path.Join(u.prefix, filepath.ToSlash(key))
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(objectKey),
		Body:        f,
		ContentType: aws.String(contentType),
	}); err != nil {
		u.logger.Error("upload failed", "bucket", u.bucket, "key", objectKey, "error", err)
		return "", fmt.Errorf("upload %s failed: %w", localPath, err)
	}

	location := "s3://" + u.bucket + "/" + objectKey
	u.logger.Info("uploaded artifact", "path", localPath, "location", location)
	return location, nil
}
