package scanner

import (
	"fmt"
	"os"

	"github.com/OiAnthony/image-deduplicate/imageprocessor"
	"github.com/OiAnthony/image-deduplicate/logging"

	"github.com/spf13/afero"
)

// EnumerateImages returns every supported image under root in lexical walk
// order. Unreadable entries below root are logged and skipped.
func EnumerateImages(fs afero.Fs, root string) ([]string, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	var paths []string
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.LogWarning("Skipping %s: %v", path, err)
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if imageprocessor.IsImageFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	logging.DebugLog("Found %d image files under %s", len(paths), root)
	return paths, nil
}
