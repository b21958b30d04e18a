// Package checkpoint persists the crawl snapshot after every page.
//
// The snapshot file is fully replaced on each write. Writes go to a temporary
// file in the same directory and are renamed into place, so readers never see
// a truncated document.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/eop-tender-crawler/internal/crawler"
	"github.com/JakeFAU/eop-tender-crawler/internal/storage"
)

// DefaultFileName is the snapshot name used when no path is configured.
const DefaultFileName = "tenders_data.json"

const contentType = "application/json; charset=utf-8"

// Writer implements crawler.Checkpointer.
type Writer struct {
	path   string
	mirror storage.BlobStore
	prefix string
	logger *zap.Logger
}

// Option customizes a Writer.
type Option func(*Writer)

// WithMirror uploads every snapshot to store under prefix/<run_id>/.
func WithMirror(store storage.BlobStore, prefix string) Option {
	return func(w *Writer) {
		w.mirror = store
		w.prefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWriter returns a Writer targeting path.
func NewWriter(path string, opts ...Option) *Writer {
	if path == "" {
		path = DefaultFileName
	}
	w := &Writer{path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the local snapshot path.
func (w *Writer) Path() string {
	return w.path
}

// Write replaces the local snapshot and, if configured, mirrors it. A mirror
// failure is logged and does not fail the write.
func (w *Writer) Write(ctx context.Context, snapshot crawler.Snapshot) error {
	data, err := Encode(snapshot)
	if err != nil {
		return err
	}
	if err := writeAtomic(w.path, data); err != nil {
		return err
	}
	if w.mirror == nil {
		return nil
	}
	key := path.Join(w.prefix, snapshot.Metadata.RunID, filepath.Base(w.path))
	uri, err := w.mirror.PutObject(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		w.logger.Warn("snapshot mirror failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	w.logger.Debug("snapshot mirrored", zap.String("uri", uri))
	return nil
}

// Encode renders a snapshot as indented UTF-8 JSON with a trailing newline.
// Non-ASCII text and HTML-significant characters are written literally.
func Encode(snapshot crawler.Snapshot) ([]byte, error) {
	if snapshot.Tenders == nil {
		snapshot.Tenders = []crawler.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads a snapshot written by Writer.
func Load(path string) (crawler.Snapshot, error) {
	// #nosec G304 -- the snapshot path is operator supplied.
	data, err := os.ReadFile(path)
	if err != nil {
		return crawler.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot crawler.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return crawler.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if snapshot.Tenders == nil {
		snapshot.Tenders = []crawler.Record{}
	}
	return snapshot, nil
}

func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	// #nosec G302 -- snapshot is meant to be readable by other tools.
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
