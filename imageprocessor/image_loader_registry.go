package imageprocessor

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"github.com/OiAnthony/image-deduplicate/logging"

	"github.com/spf13/afero"
)

// specializedLoaders are registered by optional, build-tagged loaders
var specializedLoaders []func(r *ImageLoaderRegistry)

// ImageLoaderRegistry maintains a registry of image loaders
type ImageLoaderRegistry struct {
	loaders   map[string]ImageLoader
	fallbacks []ImageLoader
	mutex     sync.RWMutex
}

// NewImageLoaderRegistry creates a registry whose standard loader reads from fs
func NewImageLoaderRegistry(fs afero.Fs) *ImageLoaderRegistry {
	registry := &ImageLoaderRegistry{
		loaders: make(map[string]ImageLoader),
	}

	standardLoader := NewStandardImageLoader(fs)
	for ext := range formatExtensions {
		registry.RegisterLoader(ext, standardLoader)
	}

	for _, register := range specializedLoaders {
		register(registry)
	}

	return registry
}

// RegisterLoader registers a new loader for a specific file extension
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.loaders[strings.ToLower(ext)] = loader
}

// RegisterFallback adds a loader tried when the primary loader fails
func (r *ImageLoaderRegistry) RegisterFallback(loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.fallbacks = append(r.fallbacks, loader)
}

// GetLoader returns the loader registered for the path's extension, or nil
func (r *ImageLoaderRegistry) GetLoader(path string) ImageLoader {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.loaders[strings.ToLower(filepath.Ext(path))]
}

// CanLoadFile checks if any registered loader can handle the given file
func (r *ImageLoaderRegistry) CanLoadFile(path string) bool {
	return r.GetLoader(path) != nil
}

// CanLoad lets the registry stand in for a single ImageLoader
func (r *ImageLoaderRegistry) CanLoad(path string) bool {
	return r.CanLoadFile(path)
}

// LoadImage loads an image using the appropriate registered loader.
// Every failure is returned as a *DecodeError.
func (r *ImageLoaderRegistry) LoadImage(path string) (img image.Image, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.LogError("Panic during image loading: %v, file: %s", rec, path)
			img, err = nil, &DecodeError{Path: path, Err: fmt.Errorf("panic during decode: %v", rec)}
		}
	}()

	loader := r.GetLoader(path)
	if loader == nil {
		return nil, &DecodeError{Path: path, Err: errors.New("unsupported image format")}
	}

	img, err = loader.LoadImage(path)
	if err == nil {
		return img, nil
	}

	r.mutex.RLock()
	fallbacks := r.fallbacks
	r.mutex.RUnlock()

	for _, fb := range fallbacks {
		if !fb.CanLoad(path) {
			continue
		}
		logging.DebugLog("Primary loader failed for %s: %v, trying fallback", path, err)
		if fbImg, fbErr := fb.LoadImage(path); fbErr == nil {
			return fbImg, nil
		}
	}

	return nil, &DecodeError{Path: path, Err: err}
}
