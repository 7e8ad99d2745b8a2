package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Backend persists uploaded documents. Refs are opaque to callers: the local
// backend returns filesystem paths, the S3 backend returns s3://bucket/key.
type Backend interface {
	// Put stores the upload under a backend-chosen location derived from name.
	Put(ctx context.Context, name string, r io.Reader) (ref string, err error)
	// Get returns the stored document bytes, for the download fallback.
	Get(ctx context.Context, ref string) ([]byte, error)
	// Fetch makes the document available as a local file for rasterization
	// and extraction. cleanup removes any temporary copy; it is always safe
	// to call.
	Fetch(ctx context.Context, ref string) (localPath string, cleanup func(), err error)
}

// Local stores uploads under a directory on disk.
type Local struct {
	Dir string
}

func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{Dir: dir}, nil
}

func (l *Local) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	path := filepath.Join(l.Dir, filepath.Base(name))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("cannot save upload: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return "", fmt.Errorf("write failed: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func (l *Local) Get(ctx context.Context, ref string) ([]byte, error) {
	if !strings.HasPrefix(filepath.Clean(ref), filepath.Clean(l.Dir)) {
		return nil, fmt.Errorf("ref outside upload dir: %s", ref)
	}
	return os.ReadFile(ref)
}

func (l *Local) Fetch(ctx context.Context, ref string) (string, func(), error) {
	if _, err := os.Stat(ref); err != nil {
		return "", func() {}, err
	}
	return ref, func() {}, nil
}
