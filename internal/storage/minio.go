package storage

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/huddle/server/internal/config"
	"github.com/huddle/server/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const ndjsonContentType = "application/x-ndjson"

// MinIOClient keeps audit archives in a single bucket.
type MinIOClient struct {
	client *minio.Client
	bucket string
}

func NewMinIOClient(cfg config.MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client for %s: %w", cfg.Endpoint, err)
	}
	return &MinIOClient{client: client, bucket: cfg.Bucket}, nil
}

// WriteArchive stores an NDJSON batch, tagging the object with its row count.
func (m *MinIOClient) WriteArchive(ctx context.Context, key string, body []byte, records int) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:  ndjsonContentType,
		UserMetadata: archiveMetadata(records),
	})
	details := map[string]interface{}{
		"bucket":  m.bucket,
		"key":     key,
		"bytes":   len(body),
		"records": records,
	}
	if err != nil {
		logger.Error("audit_archive_write_failed", err, details)
		return err
	}
	logger.Info("audit_archive_written", details)
	return nil
}

func archiveMetadata(records int) map[string]string {
	return map[string]string{"Record-Count": strconv.Itoa(records)}
}

// EnsureBucket creates the archive bucket on first start.
func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", m.bucket, err)
	}
	logger.Info("audit_bucket_created", map[string]interface{}{"bucket": m.bucket})
	return nil
}
