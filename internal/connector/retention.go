package connector

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSRetainer uploads synced cloud-files bytes to a tenant-scoped GCS
// prefix, for source platforms (legal holds, e-discovery) that require
// a durable copy independent of the vector index. Adapted from the
// source platform's StorageAdapter, narrowed to the one Upload path
// this connector needs.
type GCSRetainer struct {
	client *storage.Client
	bucket string
}

// NewGCSRetainer creates a GCSRetainer writing into bucket.
func NewGCSRetainer(ctx context.Context, bucket string) (*GCSRetainer, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("connector.NewGCSRetainer: %w", err)
	}
	return &GCSRetainer{client: client, bucket: bucket}, nil
}

var _ Retainer = (*GCSRetainer)(nil)

// Retain writes data to gs://bucket/<tenantID>/<externalID>.
func (r *GCSRetainer) Retain(ctx context.Context, tenantID, externalID string, data []byte) error {
	object := fmt.Sprintf("%s/%s", tenantID, externalID)
	w := r.client.Bucket(r.bucket).Object(object).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("connector.GCSRetainer.Retain write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("connector.GCSRetainer.Retain close: %w", err)
	}
	return nil
}

// Close closes the underlying GCS client.
func (r *GCSRetainer) Close() error {
	return r.client.Close()
}
