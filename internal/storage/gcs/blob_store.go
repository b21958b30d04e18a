// Package gcs mirrors run artifacts into a Google Cloud Storage bucket.
//
// Artifacts are small JSON snapshots and text reports, so each upload is
// buffered and sent in a single request together with its CRC32C. GCS
// rejects the object if the bytes it received do not match.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Config names the bucket artifacts are mirrored to.
type Config struct {
	Bucket string
}

// BlobStore writes artifacts to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// New creates a GCS-backed blob store. The caller owns client.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	return &BlobStore{client: client, bucket: bucket}, nil
}

// PutObject uploads the artifact at objectPath and returns its gs:// URI.
// Snapshots are rewritten after every page, so objects are not cacheable.
func (s *BlobStore) PutObject(ctx context.Context, objectPath string, contentType string, r io.Reader) (string, error) {
	name, err := objectName(objectPath)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", name, err)
	}
	uri := fmt.Sprintf("gs://%s/%s", s.bucket, name)

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ChunkSize = 0
	w.CacheControl = "no-cache, max-age=0"
	w.ContentType = contentType
	w.CRC32C = checksum(data)
	w.SendCRC32C = true

	if _, err := w.Write(data); err != nil {
		// Close reports the same failure; the write error is the useful one.
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", uri, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", uri, err)
	}
	return uri, nil
}

// objectName cleans p into a bucket-relative object name.
func objectName(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("object path is required")
	}
	name := strings.TrimLeft(path.Clean("/"+p), "/")
	if name == "" {
		return "", fmt.Errorf("object path %q names the bucket root", p)
	}
	return name, nil
}

func checksum(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}
