package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// AppName is used for the cache directory and log lines
const AppName = "image-deduplicate"

// GetDefaultCachePath returns the default location of the hash cache, under
// the user cache directory when one is available
func GetDefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		// Fallback to current directory if no cache dir can be determined
		return ".image-dedup-cache.db"
	}
	return filepath.Join(dir, AppName, "hashes.db")
}

// ValidateThreshold checks a Hamming threshold against the fingerprint length
func ValidateThreshold(threshold, hashSize int) error {
	bits := hashSize * hashSize
	if threshold < 0 || threshold > bits {
		return fmt.Errorf("threshold %d out of range, must be between 0 and %d for hash size %d", threshold, bits, hashSize)
	}
	return nil
}

// FormatBytes renders a byte count for humans
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// Plural returns word with an "s" appended unless n is 1
func Plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
