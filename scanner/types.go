package scanner

import (
	"github.com/OiAnthony/image-deduplicate/types"
)

// ProcessImageResult holds the outcome of fingerprinting one path
type ProcessImageResult struct {
	Path   string
	Record types.ImageRecord
	Error  error

	// StoreError is set when the fingerprint was computed but could not be cached
	StoreError error
}

// Success reports whether the path produced a record
func (r ProcessImageResult) Success() bool {
	return r.Error == nil
}

// Progress receives per-image progress from a run. Implementations must be
// safe for concurrent use.
type Progress interface {
	Start(total int)
	Increment(result ProcessImageResult)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Start(int)                    {}
func (nopProgress) Increment(ProcessImageResult) {}
func (nopProgress) Finish()                      {}
