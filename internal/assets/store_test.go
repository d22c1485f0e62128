package assets

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	webpHeader = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00")
)

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
		err      error
	}{
		{name: "png", data: pngHeader, expected: "image/png"},
		{name: "jpeg", data: jpegHeader, expected: "image/jpeg"},
		{name: "webp", data: webpHeader, expected: "image/webp"},
		{name: "gif rejected", data: gifHeader, err: ErrUnsupportedType},
		{name: "text rejected", data: []byte("<svg></svg>"), err: ErrUnsupportedType},
		{name: "empty rejected", data: nil, err: ErrUnsupportedType},
		{name: "too large", data: append(bytes.Clone(pngHeader), make([]byte, MaxLogoBytes)...), err: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contentType, err := ValidateImage(tt.data)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, contentType)
		})
	}

	t.Run("exactly the limit is accepted", func(t *testing.T) {
		data := append(bytes.Clone(pngHeader), make([]byte, MaxLogoBytes-len(pngHeader))...)
		_, err := ValidateImage(data)
		require.NoError(t, err)
	})
}

func TestLogoKey(t *testing.T) {
	tenantID := uuid.MustParse("0190f6a4-8f5c-7cc2-9a39-2b6f3a1e5d10")

	key := LogoKey(tenantID, "image/png", pngHeader)
	require.Regexp(t, `^tenants/0190f6a4-8f5c-7cc2-9a39-2b6f3a1e5d10/logo-[0-9a-f]{16}\.png$`, key)
	require.Equal(t, key, LogoKey(tenantID, "image/png", pngHeader), "same content, same key")
	require.NotEqual(t, key, LogoKey(tenantID, "image/png", append(bytes.Clone(pngHeader), 1)))
	require.Contains(t, LogoKey(tenantID, "image/jpeg", jpegHeader), ".jpg")
}

func TestCleanKey(t *testing.T) {
	for _, ok := range []string{"a", "tenants/x/logo.png"} {
		got, err := CleanKey(ok)
		require.NoError(t, err)
		require.Equal(t, ok, got)
	}

	for _, bad := range []string{"", "/abs", "../up", "a/../../b", "a//b", "a/./b", ".", "..", `a\b`} {
		_, err := CleanKey(bad)
		require.ErrorIs(t, err, ErrInvalidKey, bad)
	}
}

func TestKeyFromURL(t *testing.T) {
	s := NewMemoryStore("https://cdn.example.com/assets/")

	key, ok := KeyFromURL(s, s.PublicURL("tenants/x/logo.png"))
	require.True(t, ok)
	require.Equal(t, "tenants/x/logo.png", key)

	for _, url := range []string{"https://elsewhere.example.com/logo.png", "https://cdn.example.com/assets/../secret", ""} {
		_, ok := KeyFromURL(s, url)
		require.False(t, ok, url)
	}
}
