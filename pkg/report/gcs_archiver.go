//go:build gcp

package report

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSArchiver mirrors canonical reports to a Google Cloud Storage bucket.
// Built only with the gcp tag; deployments on GCP enable it instead of the
// S3 archiver.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSArchiverConfig holds configuration for GCSArchiver.
type GCSArchiverConfig struct {
	Bucket string
	Prefix string
}

// NewGCSArchiver creates an archiver using Application Default Credentials.
func NewGCSArchiver(ctx context.Context, cfg GCSArchiverConfig) (*GCSArchiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs archiver: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs archiver: creating client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Archive uploads the canonical report bytes under <prefix><runID>.json.
func (a *GCSArchiver) Archive(ctx context.Context, runID string, canonical []byte) error {
	obj := a.client.Bucket(a.bucket).Object(a.prefix + runID + ".json")
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(canonical); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs archiver: write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs archiver: close failed: %w", err)
	}
	return nil
}
