// Package storage selects the blob store that archives result files.
package storage

import (
	"context"
	"fmt"
	"strings"

	gcsclient "cloud.google.com/go/storage"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
	"github.com/JakeFAU/journal-email-crawler/internal/storage/gcs"
	"github.com/JakeFAU/journal-email-crawler/internal/storage/local"
	"github.com/JakeFAU/journal-email-crawler/internal/storage/memory"
)

// Supported backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Config mirrors the storage section of the configuration file.
type Config struct {
	Backend string
	Bucket  string
	Prefix  string
	BaseDir string
}

// Closer releases backend resources.
type Closer func() error

// NewBlobStore builds the configured backend. A nil store with a nil error
// means archiving is disabled.
func NewBlobStore(ctx context.Context, cfg Config) (crawler.BlobStore, Closer, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, noop, nil
	case BackendMemory:
		return memory.NewBlobStore(), noop, nil
	case BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local storage: %w", err)
		}
		return store, noop, nil
	case BackendGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("gcs storage: %w", err)
		}
		return store, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
