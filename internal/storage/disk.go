package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DiskStorage writes assets below a local directory. It serves development setups
// without an object store.
type DiskStorage struct {
	root    string
	baseURL string
}

// NewDiskStorage creates root if needed.
func NewDiskStorage(root, baseURL string) (*DiskStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("disk storage: create root: %w", err)
	}
	return &DiskStorage{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save copies the content to root/name and returns its location.
func (d *DiskStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key := strings.TrimLeft(path.Clean("/"+name), "/")
	if key == "" {
		return "", fmt.Errorf("disk storage: empty key")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("disk storage: create dir: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("disk storage: create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("disk storage: write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("disk storage: close %s: %w", key, err)
	}

	if d.baseURL == "" {
		return "file://" + filepath.ToSlash(target), nil
	}
	return publicURL(d.baseURL, key), nil
}
