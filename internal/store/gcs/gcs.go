// Package gcs stores ledger collections as objects in a Cloud Storage bucket.
package gcs

import (
	"context"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"

	"github.com/dvloznov/ledger-ai/internal/store"
)

// Backend keeps one object per collection at gs://<bucket>/<prefix>/<key>.json.
type Backend struct {
	client *storage.Client
	bucket string
	prefix string
}

// New wraps an existing storage client. The caller owns the client.
func New(client *storage.Client, bucket, prefix string) *Backend {
	return &Backend{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// ObjectName returns the object path used for a collection key.
func ObjectName(prefix, key string) string {
	return path.Join(prefix, key+".json")
}

// Get downloads the blob for key.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.client.Bucket(b.bucket).Object(ObjectName(b.prefix, key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "gcs.Get: open reader for %q", key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "gcs.Get: read %q", key)
	}
	return data, nil
}

// Put uploads the blob for key, replacing the previous object.
func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.client.Bucket(b.bucket).Object(ObjectName(b.prefix, key)).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "gcs.Put: write %q", key)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "gcs.Put: finalize %q", key)
	}
	return nil
}

var _ store.Backend = (*Backend)(nil)
