package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 各种图片类型的 Magic Bytes
var (
	// JPEG: FF D8 FF
	jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46}
	// PNG: 89 50 4E 47
	pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	// GIF: GIF87a 或 GIF89a
	gifMagic = []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61}
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", jpegMagic, "image/jpeg"},
		{"png", pngMagic, "image/png"},
		{"gif", gifMagic, "image/gif"},
		{"text", []byte("hello world"), "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectContentType(tt.data))
		})
	}
}

func TestIsImageMIME(t *testing.T) {
	assert.True(t, IsImageMIME("image/png"))
	assert.True(t, IsImageMIME("IMAGE/JPEG; charset=binary"))
	assert.False(t, IsImageMIME("application/pdf"))
	assert.False(t, IsImageMIME(""))
	assert.False(t, IsImageMIME("text/image/plain"))
}

func TestExtensionFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"photo.jpg", "jpg"},
		{"photo.JPG", "JPG"},
		{"archive.tar.gz", "gz"},
		{"noext", ""},
		{"trailing.", ""},
		{"dir.v2/noext", ""},
		{`C:\Users\me\avatar.png`, "png"},
		{".hidden", "hidden"},
		{"a.p?ng", ""},
		{"a.png#frag", ""},
		{"a.jpg%2F..", ""},
		{"a.waytoolongextension", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtensionFromFilename(tt.filename))
		})
	}
}

func TestExtensionForMIME(t *testing.T) {
	assert.Equal(t, "jpg", ExtensionForMIME("image/jpeg"))
	assert.Equal(t, "png", ExtensionForMIME("image/png; q=1"))
	assert.Equal(t, "x-icon", ExtensionForMIME("image/x-icon"))
	assert.Equal(t, "", ExtensionForMIME("image/"))
	assert.Equal(t, "", ExtensionForMIME("garbage"))
	assert.Equal(t, "", ExtensionForMIME("image/x/../../u2/evil"))
	assert.Equal(t, "", ExtensionForMIME("image/a b"))
}

func TestIsSafeExtension(t *testing.T) {
	for _, ext := range []string{"jpg", "JPEG", "svg+xml", "x-icon", "tar.gz"} {
		assert.True(t, IsSafeExtension(ext), ext)
	}
	for _, ext := range []string{"", "x/../../u2", "a?b", "a b", "a%2f", "12345678901234567"} {
		assert.False(t, IsSafeExtension(ext), ext)
	}
}
