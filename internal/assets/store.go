// Package assets stores tenant uploaded files such as logos.
package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/crc64nvme"
)

// MaxLogoBytes is the largest accepted logo.
const MaxLogoBytes = 2 << 20

var (
	ErrNotFound        = errors.New("asset not found")
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrInvalidKey      = errors.New("invalid asset key")
)

// imageTypes maps accepted sniffed content types to file extensions.
var imageTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// Store holds public assets addressed by key.
type Store interface {
	// Upload stores data under key, replacing any existing object.
	Upload(ctx context.Context, key, contentType string, data []byte) error

	// PublicURL returns the URL the object is served from.
	PublicURL(key string) string

	// Delete removes an object. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, key string) error
}

// ValidateImage checks the size and sniffed type of an image and returns its content type.
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrUnsupportedType)
	}
	if len(data) > MaxLogoBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), MaxLogoBytes)
	}

	contentType := http.DetectContentType(data)
	if _, ok := imageTypes[contentType]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	return contentType, nil
}

// LogoKey returns the content-addressed key of a tenant logo.
func LogoKey(tenantID uuid.UUID, contentType string, data []byte) string {
	ext, ok := imageTypes[contentType]
	if !ok {
		ext = "bin"
	}
	h := crc64nvme.New()
	_, _ = h.Write(data)
	return fmt.Sprintf("tenants/%s/logo-%016x.%s", tenantID, h.Sum64(), ext)
}

// CleanKey validates a key and returns it in canonical form.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return cleaned, nil
}

// KeyFromURL returns the key of an object published by s at url. It reports
// false for URLs s did not produce.
func KeyFromURL(s Store, url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.PublicURL(""))
	if !ok {
		return "", false
	}
	key, err := CleanKey(key)
	return key, err == nil
}

func publicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + key
}
