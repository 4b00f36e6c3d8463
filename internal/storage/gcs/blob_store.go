// Package gcs archives result files in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

const defaultContentType = "text/plain; charset=utf-8"

// Config names the bucket and an optional key prefix inside it.
type Config struct {
	Bucket string
	Prefix string
}

// BlobStore uploads result files under Prefix in Bucket.
type BlobStore struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// New binds a store to cfg.Bucket.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	switch {
	case client == nil:
		return nil, errors.New("gcs: storage client is required")
	case cfg.Bucket == "":
		return nil, errors.New("gcs: bucket name is required")
	}
	return &BlobStore{
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// objectName joins key onto the prefix.
func (s *BlobStore) objectName(key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("gcs: object key is required")
	}
	return path.Join(s.prefix, key), nil
}

// PutObject uploads r in a single request and returns the object's gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	name, err := s.objectName(key)
	if err != nil {
		return "", err
	}
	w := s.bucket.Object(name).NewWriter(ctx)
	w.ChunkSize = 0
	w.ContentType = contentType
	if w.ContentType == "" {
		w.ContentType = defaultContentType
	}
	if _, err := io.Copy(w, r); err != nil {
		return "", errors.Join(fmt.Errorf("gcs: upload %s: %w", name, err), w.Close())
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs: finalize %s: %w", name, err)
	}
	return "gs://" + s.name + "/" + name, nil
}
