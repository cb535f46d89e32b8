package scanner

import (
	"fmt"
	"os"

	"github.com/OiAnthony/image-deduplicate/database"
	"github.com/OiAnthony/image-deduplicate/imageprocessor"
	"github.com/OiAnthony/image-deduplicate/logging"
	"github.com/OiAnthony/image-deduplicate/types"
)

// checkCache returns a finished result when the cache holds a fingerprint for
// an unchanged file, or nil when the image has to be processed
func checkCache(cache database.HashCache, path string, info os.FileInfo) *ProcessImageResult {
	fp, ok := cache.Lookup(path, info.Size(), info.ModTime())
	if !ok {
		return nil
	}

	logging.DebugLog("Skipping unchanged image: %s", path)
	return &ProcessImageResult{
		Path: path,
		Record: types.ImageRecord{
			Path:        path,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Fingerprint: fp,
			FromCache:   true,
		},
	}
}

// computeAndStore decodes and hashes the image, then caches the fingerprint.
// A cache failure does not fail the image.
func computeAndStore(cache database.HashCache, loader imageprocessor.ImageLoader, hasher imageprocessor.Hasher, path string, info os.FileInfo) ProcessImageResult {
	img, err := loader.LoadImage(path)
	if err != nil {
		return ProcessImageResult{Path: path, Error: err}
	}

	fp, err := hasher.Fingerprint(img)
	if err != nil {
		return ProcessImageResult{Path: path, Error: &imageprocessor.DecodeError{Path: path, Err: fmt.Errorf("hash: %w", err)}}
	}

	result := ProcessImageResult{
		Path: path,
		Record: types.ImageRecord{
			Path:        path,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Fingerprint: fp,
		},
	}
	if err := cache.Store(path, info.Size(), info.ModTime(), fp); err != nil {
		result.StoreError = err
	}
	return result
}
