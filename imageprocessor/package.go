// Package imageprocessor turns image files into perceptual fingerprints.
//
// It owns two concerns: loading a pixel buffer from a path through a registry
// of format-specific loaders, and reducing that buffer to a fixed-length
// fingerprint with one of the supported hash algorithms.
package imageprocessor

import "image"

// ImageLoader is the interface that all image loaders must implement
type ImageLoader interface {
	// CanLoad checks if the loader can handle the given file
	CanLoad(path string) bool

	// LoadImage loads and returns the decoded image
	LoadImage(path string) (image.Image, error)
}
