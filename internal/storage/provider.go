// Package storage selects where snapshot and analysis artifacts are mirrored.
// The local JSON snapshot is always the primary copy; a mirror is optional.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	gcsclient "cloud.google.com/go/storage"

	"github.com/JakeFAU/eop-tender-crawler/internal/storage/gcs"
	"github.com/JakeFAU/eop-tender-crawler/internal/storage/local"
	"github.com/JakeFAU/eop-tender-crawler/internal/storage/memory"
)

// Mirror kinds.
const (
	KindNone   = "none"
	KindLocal  = "local"
	KindGCS    = "gcs"
	// KindMemory keeps artifacts in process; a dry run of the mirror path.
	KindMemory = "memory"
)

// BlobStore writes an artifact and returns a URI for it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Config selects and parameterizes the mirror.
type Config struct {
	Kind      string
	BaseDir   string
	GCSBucket string
}

// New builds the configured BlobStore. A nil store means mirroring is off.
// The returned close func is never nil.
func New(ctx context.Context, cfg Config) (BlobStore, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindNone:
		return nil, noop, nil
	case KindLocal:
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, noop, fmt.Errorf("init local mirror: %w", err)
		}
		return store, noop, nil
	case KindMemory:
		return memory.NewBlobStore(), noop, nil
	case KindGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			if cerr := client.Close(); cerr != nil {
				return nil, noop, fmt.Errorf("init gcs mirror: %w (close client: %v)", err, cerr)
			}
			return nil, noop, fmt.Errorf("init gcs mirror: %w", err)
		}
		return store, client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown mirror kind %q", cfg.Kind)
	}
}
