package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/OiAnthony/image-deduplicate/config"
	"github.com/OiAnthony/image-deduplicate/database"
	"github.com/OiAnthony/image-deduplicate/grouping"
	"github.com/OiAnthony/image-deduplicate/imageprocessor"
	"github.com/OiAnthony/image-deduplicate/logging"
	"github.com/OiAnthony/image-deduplicate/scanner"
	"github.com/OiAnthony/image-deduplicate/types"
)

// openCache opens the configured cache, or an in-memory one when caching is disabled
func openCache(cfg *config.Config) (*database.Cache, error) {
	opts := database.Options{FlushEvery: cfg.Cache.FlushEvery}
	cache, err := database.Open(cfg.CacheBackend(), cfg.Cache.Path, cfg.Profile(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open hash cache: %w", err)
	}
	logging.DebugLog("Using %s hash cache with %d entries", cfg.CacheBackend(), cache.Len())
	return cache, nil
}

// runPipeline fingerprints, groups and selects the images under inputDir.
// progress may be nil.
func runPipeline(ctx context.Context, cfg *config.Config, inputDir string, progress io.Writer) (*types.Result, error) {
	paths, err := scanner.EnumerateImages(appFs, inputDir)
	if err != nil {
		return nil, err
	}

	hasher, err := imageprocessor.NewHasher(imageprocessor.Algorithm(cfg.Hash.Algorithm), cfg.Hash.Size)
	if err != nil {
		return nil, err
	}
	policy, err := grouping.ParsePolicy(cfg.Group.Select)
	if err != nil {
		return nil, err
	}

	cache, err := openCache(cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logging.LogWarning("Failed to close hash cache: %v", err)
		}
	}()

	d := &scanner.Deduplicator{
		Fs:        appFs,
		Cache:     cache,
		Hasher:    hasher,
		Loader:    imageprocessor.NewImageLoaderRegistry(appFs),
		Workers:   cfg.Scan.Workers,
		Threshold: cfg.Group.Threshold,
		Policy:    policy,
	}
	if progress != nil && len(paths) > 0 {
		d.Progress = scanner.NewProgressTracker(progress, "Hashing images")
	}

	logging.LogInfo("Deduplicating %d images in %s (hash %s, threshold %d)",
		len(paths), inputDir, cfg.Profile(), cfg.Group.Threshold)
	return d.Deduplicate(ctx, paths)
}
