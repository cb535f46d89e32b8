package imageprocessor

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, splitImage(32, 32)))
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0644))
}

func TestRegistry_LoadImage(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/photos/a.PNG")

	registry := NewImageLoaderRegistry(fs)
	require.True(t, registry.CanLoadFile("/photos/a.PNG"))

	img, err := registry.LoadImage("/photos/a.PNG")
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
}

func TestRegistry_DecodeErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/photos/broken.jpg", []byte("definitely not a jpeg"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/photos/notes.txt", []byte("hello"), 0644))

	registry := NewImageLoaderRegistry(fs)

	for _, path := range []string{"/photos/broken.jpg", "/photos/notes.txt", "/photos/missing.png"} {
		_, err := registry.LoadImage(path)
		require.Error(t, err, path)

		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr), path)
		assert.Equal(t, path, decodeErr.Path)
	}
}

type stubLoader struct {
	BaseImageLoader
	calls int
}

func (s *stubLoader) LoadImage(path string) (img image.Image, err error) {
	s.calls++
	return splitImage(8, 8), nil
}

func TestRegistry_Fallback(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/photos/odd.tiff", []byte("II*\x00garbage"), 0644))

	registry := NewImageLoaderRegistry(fs)
	fallback := &stubLoader{BaseImageLoader: BaseImageLoader{SupportedFormats: []FormatType{FormatTIFF}}}
	registry.RegisterFallback(fallback)

	img, err := registry.LoadImage("/photos/odd.tiff")
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, 1, fallback.calls)

	// fallbacks only apply to formats they declare
	require.NoError(t, afero.WriteFile(fs, "/photos/odd.png", []byte("nope"), 0644))
	_, err = registry.LoadImage("/photos/odd.png")
	assert.Error(t, err)
	assert.Equal(t, 1, fallback.calls)
}

func TestFormats(t *testing.T) {
	assert.True(t, IsImageFile("a/b/C.JPEG"))
	assert.True(t, IsImageFile("x.webp"))
	assert.False(t, IsImageFile("x.cr2"))
	assert.Equal(t, FormatTIFF, GetFileFormat("scan.tif"))
	assert.Equal(t, FormatUnknown, GetFileFormat("README"))
	assert.Contains(t, GetSupportedExtensions(), ".bmp")
}
