// Package scanner runs the deduplication pipeline: fingerprint every path on
// a bounded worker pool, then group and pick representatives.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/OiAnthony/image-deduplicate/database"
	"github.com/OiAnthony/image-deduplicate/grouping"
	"github.com/OiAnthony/image-deduplicate/imageprocessor"
	"github.com/OiAnthony/image-deduplicate/logging"
	"github.com/OiAnthony/image-deduplicate/signalhandler"
	"github.com/OiAnthony/image-deduplicate/types"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Deduplicator holds everything a run needs. Zero values are filled in:
// the OS filesystem, an in-memory cache, an average hasher of size 8, a
// standard loader registry, one worker per CPU and the first-member policy.
type Deduplicator struct {
	Fs        afero.Fs
	Cache     database.HashCache
	Hasher    imageprocessor.Hasher
	Loader    imageprocessor.ImageLoader
	Workers   int
	Threshold int
	Policy    grouping.Policy
	Progress  Progress
}

// recoverer is implemented by caches that can report a recovered corruption
type recoverer interface {
	Recovered() error
}

func (d *Deduplicator) withDefaults() (*Deduplicator, error) {
	out := *d
	if out.Fs == nil {
		out.Fs = afero.NewOsFs()
	}
	if out.Hasher == nil {
		h, err := imageprocessor.NewHasher(imageprocessor.AlgorithmAverage, 8)
		if err != nil {
			return nil, err
		}
		out.Hasher = h
	}
	if out.Cache == nil {
		out.Cache = database.NewMemory(database.Profile{
			Algorithm: string(out.Hasher.Algorithm()),
			HashSize:  out.Hasher.HashSize(),
		})
	}
	if out.Loader == nil {
		out.Loader = imageprocessor.NewImageLoaderRegistry(out.Fs)
	}
	if out.Workers < 1 {
		out.Workers = signalhandler.GetOptimalProcs()
	}
	if out.Policy == "" {
		out.Policy = grouping.PolicyFirst
	}
	if out.Progress == nil {
		out.Progress = nopProgress{}
	}
	if out.Threshold < 0 {
		return nil, fmt.Errorf("threshold must not be negative, got %d", out.Threshold)
	}
	return &out, nil
}

// Deduplicate fingerprints paths, groups them and selects one representative
// per group. Per-image problems are collected in Result.Failures and cache
// problems in Result.Warnings. The only error returned is the context's, in
// which case the partial result is discarded.
func (d *Deduplicator) Deduplicate(ctx context.Context, paths []string) (*types.Result, error) {
	run, err := d.withDefaults()
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	results, err := run.fingerprintAll(ctx, paths)
	if err != nil {
		run.flushOnCancel()
		return nil, err
	}

	result := &types.Result{}
	if rec, ok := run.Cache.(recoverer); ok && rec.Recovered() != nil {
		result.Warnings = append(result.Warnings, rec.Recovered())
	}

	var records []types.ImageRecord
	var storeErr error
	storeFailures := 0
	for _, r := range results {
		result.Stats.Total++
		if r.StoreError != nil {
			if storeErr == nil {
				storeErr = r.StoreError
			}
			storeFailures++
		}
		if !r.Success() {
			result.Failures = append(result.Failures, types.Failure{Path: r.Path, Err: r.Error})
			result.Stats.Failed++
			continue
		}
		if r.Record.FromCache {
			result.Stats.CacheHits++
		} else {
			result.Stats.Computed++
		}
		records = append(records, r.Record)
	}
	if storeErr != nil {
		result.Warnings = append(result.Warnings, fmt.Errorf("caching failed for %d images: %w", storeFailures, storeErr))
	}

	result.Groups = grouping.Group(records, run.Threshold)
	result.Representatives = grouping.SelectAll(result.Groups, run.Policy)

	if err := run.Cache.Flush(); err != nil {
		logging.LogWarning("Failed to flush hash cache: %v", err)
		result.Warnings = append(result.Warnings, fmt.Errorf("flush hash cache: %w", err))
	}

	result.Stats.Groups = len(result.Groups)
	for i, g := range result.Groups {
		result.Stats.Duplicates += len(g.Members) - 1
		for _, m := range g.Members {
			if m.Path != result.Representatives[i].Path {
				result.Stats.ReclaimableSize += m.Size
			}
		}
	}

	logging.LogInfo("Processed %d images in %v: %d cached, %d computed, %d failed, %d groups",
		result.Stats.Total, time.Since(startTime).Round(time.Millisecond),
		result.Stats.CacheHits, result.Stats.Computed, result.Stats.Failed, result.Stats.Groups)
	return result, nil
}

// fingerprintAll processes every path on the worker pool. Results keep input
// order regardless of completion order.
func (d *Deduplicator) fingerprintAll(ctx context.Context, paths []string) ([]ProcessImageResult, error) {
	results := make([]ProcessImageResult, len(paths))

	d.Progress.Start(len(paths))
	defer d.Progress.Finish()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Workers)

	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.processImage(path)
			logging.LogImageProcessed(path, results[i].Record.FromCache, results[i].Error)
			d.Progress.Increment(results[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Deduplicator) processImage(path string) ProcessImageResult {
	info, err := d.Fs.Stat(path)
	if err != nil {
		return ProcessImageResult{Path: path, Error: &imageprocessor.DecodeError{Path: path, Err: err}}
	}
	if info.IsDir() {
		return ProcessImageResult{Path: path, Error: &imageprocessor.DecodeError{Path: path, Err: fmt.Errorf("is a directory")}}
	}

	if cached := checkCache(d.Cache, path, info); cached != nil {
		return *cached
	}
	return computeAndStore(d.Cache, d.Loader, d.Hasher, path, info)
}

// flushOnCancel keeps fingerprints computed before an interrupt
func (d *Deduplicator) flushOnCancel() {
	if err := d.Cache.Flush(); err != nil {
		logging.LogWarning("Failed to flush hash cache after interrupt: %v", err)
	}
}
