package imageprocessor

import (
	"fmt"
	"image"

	"github.com/OiAnthony/image-deduplicate/types"

	"github.com/disintegration/imaging"
)

// ComputeAverageHash calculates the average hash of img as a hashSize*hashSize bit fingerprint.
//
// The image is converted to grayscale, box-filtered down to a hashSize x hashSize
// grid, and each sample becomes a 1 bit when it is at or above the grid mean.
// Bits are emitted in row-major order from the top-left sample. Fingerprints are
// only comparable with others produced by this same filter chain.
func ComputeAverageHash(img image.Image, hashSize int) (types.Fingerprint, error) {
	if hashSize <= 0 {
		return types.Fingerprint{}, fmt.Errorf("invalid hash size %d", hashSize)
	}
	if img == nil || img.Bounds().Empty() {
		return types.Fingerprint{}, ErrEmptyImage
	}

	gray := imaging.Grayscale(img)
	small := imaging.Resize(gray, hashSize, hashSize, imaging.Box)

	samples := make([]uint8, 0, hashSize*hashSize)
	for y := 0; y < hashSize; y++ {
		row := small.Pix[y*small.Stride:]
		for x := 0; x < hashSize; x++ {
			// grayscale NRGBA has R == G == B
			samples = append(samples, row[x*4])
		}
	}

	var sum uint64
	for _, s := range samples {
		sum += uint64(s)
	}
	mean := float64(sum) / float64(len(samples))

	return types.NewFingerprint(len(samples), func(i int) bool {
		return float64(samples[i]) >= mean
	}), nil
}
