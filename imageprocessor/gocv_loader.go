//go:build gocv

package imageprocessor

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

func init() {
	specializedLoaders = append(specializedLoaders, func(r *ImageLoaderRegistry) {
		r.RegisterFallback(NewOpenCVImageLoader())
	})
}

// OpenCVImageLoader decodes through OpenCV. It reads from the OS filesystem
// directly and is only used as a fallback for files the Go decoders reject.
type OpenCVImageLoader struct {
	BaseImageLoader
}

// NewOpenCVImageLoader creates a new OpenCV-backed loader
func NewOpenCVImageLoader() *OpenCVImageLoader {
	return &OpenCVImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatBMP,
				FormatTIFF,
				FormatWEBP,
			},
		},
	}
}

// LoadImage reads the file as grayscale and converts it to an image.Image
func (l *OpenCVImageLoader) LoadImage(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("opencv failed to load image: %s", path)
	}
	return mat.ToImage()
}
