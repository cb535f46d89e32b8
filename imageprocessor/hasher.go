package imageprocessor

import (
	"fmt"
	"image"

	"github.com/OiAnthony/image-deduplicate/types"

	"github.com/corona10/goimagehash"
)

// Algorithm names a perceptual hash algorithm
type Algorithm string

const (
	AlgorithmAverage    Algorithm = "average"
	AlgorithmPerception Algorithm = "perception"
	AlgorithmDifference Algorithm = "difference"
)

// Algorithms lists every supported algorithm
var Algorithms = []Algorithm{AlgorithmAverage, AlgorithmPerception, AlgorithmDifference}

// ParseAlgorithm validates an algorithm name
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, a := range Algorithms {
		if string(a) == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown hash algorithm %q", name)
}

// SupportsHashSize reports whether the algorithm can produce hashSize*hashSize bits.
// The goimagehash based algorithms need a power of two number of bits that fills
// whole 64-bit words.
func (a Algorithm) SupportsHashSize(hashSize int) bool {
	if hashSize <= 0 {
		return false
	}
	if a == AlgorithmAverage {
		return true
	}
	n := hashSize * hashSize
	return n%64 == 0 && n&(n-1) == 0
}

// Hasher reduces a decoded image to a fingerprint
type Hasher interface {
	Algorithm() Algorithm
	HashSize() int
	Fingerprint(img image.Image) (types.Fingerprint, error)
}

// NewHasher returns a hasher for the algorithm and hash size
func NewHasher(alg Algorithm, hashSize int) (Hasher, error) {
	if !alg.SupportsHashSize(hashSize) {
		return nil, fmt.Errorf("hash size %d is not supported by the %s algorithm", hashSize, alg)
	}

	switch alg {
	case AlgorithmAverage:
		return &averageHasher{size: hashSize}, nil
	case AlgorithmPerception:
		return &extHasher{alg: alg, size: hashSize, compute: goimagehash.ExtPerceptionHash}, nil
	case AlgorithmDifference:
		return &extHasher{alg: alg, size: hashSize, compute: goimagehash.ExtDifferenceHash}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", alg)
	}
}

type averageHasher struct {
	size int
}

func (h *averageHasher) Algorithm() Algorithm { return AlgorithmAverage }
func (h *averageHasher) HashSize() int        { return h.size }

func (h *averageHasher) Fingerprint(img image.Image) (types.Fingerprint, error) {
	return ComputeAverageHash(img, h.size)
}

// extHasher adapts goimagehash's extended hashes
type extHasher struct {
	alg     Algorithm
	size    int
	compute func(img image.Image, width, height int) (*goimagehash.ExtImageHash, error)
}

func (h *extHasher) Algorithm() Algorithm { return h.alg }
func (h *extHasher) HashSize() int        { return h.size }

func (h *extHasher) Fingerprint(img image.Image) (types.Fingerprint, error) {
	if img == nil || img.Bounds().Empty() {
		return types.Fingerprint{}, ErrEmptyImage
	}
	ext, err := h.compute(img, h.size, h.size)
	if err != nil {
		return types.Fingerprint{}, fmt.Errorf("compute %s hash: %w", h.alg, err)
	}
	return types.FingerprintFromWords(ext.GetHash(), h.size*h.size)
}
