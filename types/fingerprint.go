package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
)

// ErrLengthMismatch is returned when comparing fingerprints of different lengths
var ErrLengthMismatch = errors.New("fingerprint lengths differ")

// Fingerprint is a fixed-length perceptual bit vector.
//
// Bit i (raster order) lives in word i/64 at position 63-i%64, so the first
// sample is the most significant bit of the first word.
type Fingerprint struct {
	words []uint64
	bits  int
}

// NewFingerprint builds a fingerprint of n bits from a per-bit predicate
func NewFingerprint(n int, bit func(i int) bool) Fingerprint {
	fp := Fingerprint{words: make([]uint64, (n+63)/64), bits: n}
	for i := 0; i < n; i++ {
		if bit(i) {
			fp.words[i/64] |= 1 << uint(63-i%64)
		}
	}
	return fp
}

// FingerprintFromWords wraps MSB-first words holding n bits. Bits past n are cleared.
func FingerprintFromWords(words []uint64, n int) (Fingerprint, error) {
	if n < 0 || len(words) != (n+63)/64 {
		return Fingerprint{}, fmt.Errorf("%d words cannot hold exactly %d bits", len(words), n)
	}
	fp := Fingerprint{words: make([]uint64, len(words)), bits: n}
	copy(fp.words, words)
	if rem := n % 64; rem != 0 {
		fp.words[len(fp.words)-1] &= ^uint64(0) << uint(64-rem)
	}
	return fp, nil
}

// Len returns the number of bits
func (f Fingerprint) Len() int {
	return f.bits
}

// IsZero reports whether the fingerprint was never set
func (f Fingerprint) IsZero() bool {
	return f.bits == 0
}

// bit returns bit i in raster order
func (f Fingerprint) bit(i int) bool {
	return f.words[i/64]&(1<<uint(63-i%64)) != 0
}

// Distance returns the Hamming distance between two fingerprints
func (f Fingerprint) Distance(other Fingerprint) (int, error) {
	if f.bits != other.bits {
		return 0, fmt.Errorf("%w: %d vs %d bits", ErrLengthMismatch, f.bits, other.bits)
	}
	d := 0
	for i := range f.words {
		d += bits.OnesCount64(f.words[i] ^ other.words[i])
	}
	return d, nil
}

// Equal reports whether both fingerprints have the same length and bits
func (f Fingerprint) Equal(other Fingerprint) bool {
	d, err := f.Distance(other)
	return err == nil && d == 0
}

// Bytes packs the bits MSB-first into ceil(Len/8) bytes
func (f Fingerprint) Bytes() []byte {
	out := make([]byte, (f.bits+7)/8)
	for i := range out {
		out[i] = byte(f.words[i/8] >> uint(56-8*(i%8)))
	}
	return out
}

// String returns the lowercase hex form used for persistence
func (f Fingerprint) String() string {
	return hex.EncodeToString(f.Bytes())
}

// ParseFingerprint decodes the hex form produced by String for an n-bit fingerprint
func ParseFingerprint(s string, n int) (Fingerprint, error) {
	if n <= 0 {
		return Fingerprint{}, fmt.Errorf("invalid fingerprint length %d", n)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	if len(raw) != (n+7)/8 {
		return Fingerprint{}, fmt.Errorf("fingerprint %q has %d bytes, want %d", s, len(raw), (n+7)/8)
	}
	if rem := n % 8; rem != 0 && raw[len(raw)-1]&(0xff>>uint(rem)) != 0 {
		return Fingerprint{}, fmt.Errorf("fingerprint %q has bits set past %d", s, n)
	}

	fp := Fingerprint{words: make([]uint64, (n+63)/64), bits: n}
	for i, b := range raw {
		fp.words[i/8] |= uint64(b) << uint(56-8*(i%8))
	}
	return fp, nil
}

// MarshalText implements encoding.TextMarshaler, so records encode the
// fingerprint in its hex form
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
