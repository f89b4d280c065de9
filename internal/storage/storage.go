// Package storage keeps payment receipts uploaded by candidates, on the
// local filesystem or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/ignite/onboarding/internal/config"
)

// ErrNotFound is returned when a receipt key has no object.
var ErrNotFound = errors.New("receipt not found")

// Store reads and writes receipt objects by key.
type Store interface {
	PutReceipt(ctx context.Context, key, contentType string, data []byte) error
	OpenReceipt(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// New builds the store selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "s3":
		if cfg.ReceiptBucket == "" {
			return nil, fmt.Errorf("storage: s3 requires receipt_bucket")
		}
		return NewS3Store(ctx, cfg.ReceiptBucket, cfg.AWSRegion)
	case "local", "":
		return NewLocalStore(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("storage: unknown type %q", cfg.Type)
	}
}

// LocalStore writes receipts under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("creating receipt directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// path resolves key inside root and refuses keys that escape it.
func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) PutReceipt(_ context.Context, key, _ string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return fmt.Errorf("creating receipt directory: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("writing receipt: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing receipt: %w", err)
	}
	return nil
}

func (s *LocalStore) OpenReceipt(_ context.Context, key string) (io.ReadCloser, string, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("opening receipt: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(p))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return f, ct, nil
}
