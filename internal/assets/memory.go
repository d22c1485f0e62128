package assets

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

type object struct {
	contentType string
	data        []byte
	modTime     time.Time
}

// MemoryStore keeps assets in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
}

// NewMemoryStore creates an in-memory asset store publishing below baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]object),
		baseURL: baseURL,
	}
}

// Upload stores a copy of data.
func (s *MemoryStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = object{
		contentType: contentType,
		data:        bytes.Clone(data),
		modTime:     time.Now(),
	}

	return nil
}

// PublicURL returns the URL the object is served from.
func (s *MemoryStore) PublicURL(key string) string {
	return publicURL(s.baseURL, key)
}

// Delete removes an object.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}

	delete(s.objects, key)
	return nil
}

// Get returns a copy of an object's data and content type.
func (s *MemoryStore) Get(key string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}

	return bytes.Clone(obj.data), obj.contentType, nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.objects)
}

// Handler serves stored objects. Mount it with http.StripPrefix so request paths are keys.
func (s *MemoryStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")

		s.mu.RLock()
		obj, ok := s.objects[key]
		s.mu.RUnlock()

		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeContent(w, r, key, obj.modTime, bytes.NewReader(obj.data))
	})
}
