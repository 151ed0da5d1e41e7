// Package storage keeps item photos and signature images on local disk and
// serves them under public /storage/{key} URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/zaloga/internal/model"
)

// URLPrefix is the path under which blobs are served.
const URLPrefix = "/storage/"

// Blobs is the object store used by the services.
type Blobs interface {
	Put(ctx context.Context, prefix, ext string, data []byte) (string, error)
	Delete(ctx context.Context, publicURL string) error
	Read(publicURL string) ([]byte, error)
}

// Disk stores blobs as files in a single directory.
type Disk struct {
	dir     string
	baseURL string
}

// NewDisk creates dir if needed. baseURL is prepended to returned URLs and
// may be empty for host-relative URLs.
func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &Disk{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes data under a new random key and returns its public URL.
func (d *Disk) Put(_ context.Context, prefix, ext string, data []byte) (string, error) {
	key := uuid.NewString() + ext
	if prefix != "" {
		key = prefix + "-" + key
	}
	if !validKey(key) {
		return "", fmt.Errorf("invalid storage key %q: %w", key, model.ErrStorage)
	}

	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating blob: %w: %w", model.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing blob: %w: %w", model.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing blob: %w: %w", model.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.dir, key)); err != nil {
		return "", fmt.Errorf("storing blob: %w: %w", model.ErrStorage, err)
	}

	return d.baseURL + URLPrefix + key, nil
}

// Delete removes the blob a URL points at. Unknown or foreign URLs and
// already deleted blobs are not errors.
func (d *Disk) Delete(_ context.Context, publicURL string) error {
	key := KeyFromURL(publicURL)
	if key == "" {
		return nil
	}

	err := os.Remove(filepath.Join(d.dir, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting blob %s: %w: %w", key, model.ErrStorage, err)
	}
	return nil
}

// Read returns the contents of a blob by URL.
func (d *Disk) Read(publicURL string) ([]byte, error) {
	key := KeyFromURL(publicURL)
	if key == "" {
		return nil, fmt.Errorf("blob %q: %w", publicURL, model.ErrNotFound)
	}
	data, err := os.ReadFile(filepath.Join(d.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", key, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w: %w", key, model.ErrStorage, err)
	}
	return data, nil
}

// Handler serves GET /storage/{key}.
func (d *Disk) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		if !validKey(key) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeFile(w, r, filepath.Join(d.dir, key))
	})
}

// KeyFromURL returns the storage key of a blob URL: its last path segment.
// It returns "" when the URL does not point into storage.
func KeyFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	if !strings.Contains(p, URLPrefix) {
		return ""
	}
	key := path.Base(p)
	if !validKey(key) {
		return ""
	}
	return key
}

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." || strings.HasPrefix(key, ".") {
		return false
	}
	return !strings.ContainsAny(key, `/\`)
}
