package imageprocessor

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// splitImage returns a w x h image that is black on the left half and white on the right
func splitImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if x >= w/2 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func uniformImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestComputeAverageHash_RasterOrder(t *testing.T) {
	fp, err := ComputeAverageHash(splitImage(64, 64), 8)
	require.NoError(t, err)
	require.Equal(t, 64, fp.Len())

	// each row is 0000 1111: dark left half, light right half
	assert.Equal(t, "0f0f0f0f0f0f0f0f", fp.String())
}

func TestComputeAverageHash_UniformIsAllOnes(t *testing.T) {
	// every sample equals the mean, and equal-to-mean counts as set
	fp, err := ComputeAverageHash(uniformImage(40, 30, color.Gray{Y: 90}), 8)
	require.NoError(t, err)
	assert.Equal(t, "ffffffffffffffff", fp.String())
}

func TestComputeAverageHash_Deterministic(t *testing.T) {
	img := splitImage(123, 77)
	first, err := ComputeAverageHash(img, 12)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := ComputeAverageHash(img, 12)
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
	assert.Equal(t, 144, first.Len())
}

func TestComputeAverageHash_SmallSource(t *testing.T) {
	// sources smaller than the grid are upsampled
	fp, err := ComputeAverageHash(splitImage(4, 4), 8)
	require.NoError(t, err)
	assert.Equal(t, 64, fp.Len())
}

func TestComputeAverageHash_Errors(t *testing.T) {
	_, err := ComputeAverageHash(splitImage(8, 8), 0)
	assert.Error(t, err)

	_, err = ComputeAverageHash(image.NewRGBA(image.Rect(0, 0, 0, 0)), 8)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher(AlgorithmAverage, 10)
	require.NoError(t, err)
	fp, err := h.Fingerprint(splitImage(50, 50))
	require.NoError(t, err)
	assert.Equal(t, 100, fp.Len())
	assert.Equal(t, AlgorithmAverage, h.Algorithm())
	assert.Equal(t, 10, h.HashSize())

	_, err = NewHasher(AlgorithmPerception, 10)
	assert.Error(t, err)

	_, err = NewHasher(Algorithm("wavelet"), 8)
	assert.Error(t, err)
}

func TestExtHashers(t *testing.T) {
	img := splitImage(64, 64)
	for _, alg := range []Algorithm{AlgorithmPerception, AlgorithmDifference} {
		for _, size := range []int{8, 16} {
			h, err := NewHasher(alg, size)
			require.NoError(t, err, "%s/%d", alg, size)

			a, err := h.Fingerprint(img)
			require.NoError(t, err)
			b, err := h.Fingerprint(img)
			require.NoError(t, err)

			assert.Equal(t, size*size, a.Len())
			assert.True(t, a.Equal(b), "%s/%d not deterministic", alg, size)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("difference")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmDifference, alg)

	_, err = ParseAlgorithm("sha256")
	assert.Error(t, err)
}

func TestAlgorithm_SupportsHashSize(t *testing.T) {
	assert.True(t, AlgorithmAverage.SupportsHashSize(7))
	assert.False(t, AlgorithmAverage.SupportsHashSize(0))
	assert.True(t, AlgorithmPerception.SupportsHashSize(8))
	assert.True(t, AlgorithmPerception.SupportsHashSize(16))
	assert.False(t, AlgorithmPerception.SupportsHashSize(12))
	assert.False(t, AlgorithmDifference.SupportsHashSize(4))
}
