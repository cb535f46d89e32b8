package types

import "time"

// ImageRecord holds one decoded image's metadata and fingerprint for a single run
type ImageRecord struct {
	Path        string      `json:"path"`
	Size        int64       `json:"size"`
	ModTime     time.Time   `json:"modified_at"`
	Fingerprint Fingerprint `json:"fingerprint"`
	FromCache   bool        `json:"from_cache"`
}

// SimilarityGroup is a cluster of records within the threshold of its founding member
type SimilarityGroup struct {
	Representative Fingerprint
	Members        []ImageRecord
}

// Founder returns the member that created the group
func (g SimilarityGroup) Founder() ImageRecord {
	return g.Members[0]
}

// Failure records a path that could not be fingerprinted
type Failure struct {
	Path string
	Err  error
}

// RunStats summarizes a deduplication run
type RunStats struct {
	Total           int   `json:"total"`
	CacheHits       int   `json:"cache_hits"`
	Computed        int   `json:"computed"`
	Failed          int   `json:"failed"`
	Groups          int   `json:"groups"`
	Duplicates      int   `json:"duplicates"`
	ReclaimableSize int64 `json:"reclaimable_bytes"`
}

// Result is the output of a deduplication run
type Result struct {
	Representatives []ImageRecord
	Groups          []SimilarityGroup
	Failures        []Failure

	// Warnings are run-level problems (cache recovery, flush errors) that
	// did not prevent results from being produced.
	Warnings []error
	Stats    RunStats
}
