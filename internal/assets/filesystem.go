package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FileStore keeps assets on the local filesystem below a root directory and
// serves them over HTTP.
type FileStore struct {
	root    *os.Root
	baseURL string
}

// NewFileStore opens (creating if needed) dir as the asset root. Objects are
// published below baseURL, for example "/assets" or "https://cdn.example.com/assets".
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset directory: %w", err)
	}

	return &FileStore{root: root, baseURL: baseURL}, nil
}

// Close releases the asset root.
func (s *FileStore) Close() error {
	return s.root.Close()
}

// Upload writes data to a temporary file and renames it into place.
func (s *FileStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(filepath.FromSlash(key)); dir != "." {
		if err := s.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create asset directory: %w", err)
		}
	}

	tmp := filepath.FromSlash(key) + ".tmp"
	f, err := s.root.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create asset file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.root.Remove(tmp)
		return fmt.Errorf("failed to write asset: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = s.root.Remove(tmp)
		return fmt.Errorf("failed to close asset: %w", err)
	}

	if err := s.root.Rename(tmp, filepath.FromSlash(key)); err != nil {
		_ = s.root.Remove(tmp)
		return fmt.Errorf("failed to store asset: %w", err)
	}

	log.Debug().
		Str("key", key).
		Str("content_type", contentType).
		Int("size", len(data)).
		Msg("Stored asset")

	return nil
}

// PublicURL returns the URL the object is served from.
func (s *FileStore) PublicURL(key string) string {
	return publicURL(s.baseURL, key)
}

// Delete removes an object.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}

	if err := s.root.Remove(filepath.FromSlash(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	return nil
}

// Handler serves stored objects. Mount it with http.StripPrefix so request
// paths are keys. Directories are never listed.
func (s *FileStore) Handler() http.Handler {
	fsys := s.root.FS()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := CleanKey(strings.TrimPrefix(r.URL.Path, "/"))
		if err != nil || strings.HasSuffix(key, ".tmp") {
			http.NotFound(w, r)
			return
		}

		info, err := fs.Stat(fsys, key)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		// keys are content addressed so a given URL never changes
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeFileFS(w, r, fsys, key)
	})
}
