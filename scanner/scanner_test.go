package scanner

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OiAnthony/image-deduplicate/database"
	"github.com/OiAnthony/image-deduplicate/grouping"
	"github.com/OiAnthony/image-deduplicate/imageprocessor"
	"github.com/OiAnthony/image-deduplicate/types"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProfile = database.Profile{Algorithm: "average", HashSize: 8}

// splitImage is dark on one side and light on the other
func splitImage(vertical bool) image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			light := y >= 32
			if vertical {
				light = x >= 32
			}
			if light {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func writePNG(t *testing.T, fs afero.Fs, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0644))
}

type countingHasher struct {
	imageprocessor.Hasher
	calls atomic.Int32
}

func (h *countingHasher) Fingerprint(img image.Image) (types.Fingerprint, error) {
	h.calls.Add(1)
	return h.Hasher.Fingerprint(img)
}

func newCountingHasher(t *testing.T) *countingHasher {
	h, err := imageprocessor.NewHasher(imageprocessor.AlgorithmAverage, 8)
	require.NoError(t, err)
	return &countingHasher{Hasher: h}
}

// photoLibrary has two identical images, one different image and one broken file
func photoLibrary(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/photos/a.png", splitImage(true))
	writePNG(t, fs, "/photos/b.png", splitImage(true))
	writePNG(t, fs, "/photos/sub/c.png", splitImage(false))
	require.NoError(t, afero.WriteFile(fs, "/photos/broken.jpg", []byte("not a jpeg"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/photos/notes.txt", []byte("hello"), 0644))
	return fs
}

func newDeduplicator(fs afero.Fs, cache database.HashCache, hasher imageprocessor.Hasher) *Deduplicator {
	return &Deduplicator{
		Fs:        fs,
		Cache:     cache,
		Hasher:    hasher,
		Loader:    imageprocessor.NewImageLoaderRegistry(fs),
		Workers:   4,
		Threshold: 10,
	}
}

func groupPaths(groups []types.SimilarityGroup) [][]string {
	var out [][]string
	for _, g := range groups {
		var paths []string
		for _, m := range g.Members {
			paths = append(paths, m.Path)
		}
		out = append(out, paths)
	}
	return out
}

// ==== EnumerateImages Tests ====

func TestEnumerateImages(t *testing.T) {
	fs := photoLibrary(t)
	paths, err := EnumerateImages(fs, "/photos")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/photos/a.png",
		"/photos/b.png",
		"/photos/broken.jpg",
		"/photos/sub/c.png",
	}, paths)
}

func TestEnumerateImages_EmptyAndMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/empty", 0755))

	paths, err := EnumerateImages(fs, "/empty")
	require.NoError(t, err)
	assert.Empty(t, paths)

	_, err = EnumerateImages(fs, "/missing")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/file.png", []byte("x"), 0644))
	_, err = EnumerateImages(fs, "/file.png")
	assert.Error(t, err)
}

// ==== Deduplicate Tests ====

func TestDeduplicate_Empty(t *testing.T) {
	d := newDeduplicator(afero.NewMemMapFs(), database.NewMemory(testProfile), newCountingHasher(t))
	result, err := d.Deduplicate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Groups)
	assert.Empty(t, result.Representatives)
	assert.Empty(t, result.Failures)
	assert.Zero(t, result.Stats.Total)
}

func TestDeduplicate_GroupsAndFailures(t *testing.T) {
	fs := photoLibrary(t)
	paths, err := EnumerateImages(fs, "/photos")
	require.NoError(t, err)

	d := newDeduplicator(fs, database.NewMemory(testProfile), newCountingHasher(t))
	result, err := d.Deduplicate(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"/photos/a.png", "/photos/b.png"},
		{"/photos/sub/c.png"},
	}, groupPaths(result.Groups))

	require.Len(t, result.Representatives, 2)
	assert.Equal(t, "/photos/a.png", result.Representatives[0].Path)
	assert.Equal(t, "/photos/sub/c.png", result.Representatives[1].Path)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "/photos/broken.jpg", result.Failures[0].Path)
	var decodeErr *imageprocessor.DecodeError
	assert.True(t, errors.As(result.Failures[0].Err, &decodeErr))

	info, err := fs.Stat("/photos/b.png")
	require.NoError(t, err)
	assert.Equal(t, types.RunStats{
		Total:           4,
		Computed:        3,
		Failed:          1,
		Groups:          2,
		Duplicates:      1,
		ReclaimableSize: info.Size(),
	}, result.Stats)
	assert.Empty(t, result.Warnings)
}

func TestDeduplicate_ThresholdZeroSeparatesNearDuplicates(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/a.png", splitImage(true))
	writePNG(t, fs, "/b.png", splitImage(false))

	d := newDeduplicator(fs, database.NewMemory(testProfile), newCountingHasher(t))
	d.Threshold = 32
	result, err := d.Deduplicate(context.Background(), []string{"/a.png", "/b.png"})
	require.NoError(t, err)
	assert.Len(t, result.Groups, 1, "split images differ in exactly 32 bits")

	d.Threshold = 0
	result, err = d.Deduplicate(context.Background(), []string{"/a.png", "/b.png"})
	require.NoError(t, err)
	assert.Len(t, result.Groups, 2)
}

func TestDeduplicate_CacheReuse(t *testing.T) {
	fs := photoLibrary(t)
	paths, err := EnumerateImages(fs, "/photos")
	require.NoError(t, err)

	cache := database.NewMemory(testProfile)
	hasher := newCountingHasher(t)
	d := newDeduplicator(fs, cache, hasher)

	first, err := d.Deduplicate(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hasher.calls.Load())

	second, err := d.Deduplicate(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hasher.calls.Load(), "unchanged files must not be rehashed")
	assert.Equal(t, 3, second.Stats.CacheHits)
	assert.Zero(t, second.Stats.Computed)
	assert.Equal(t, groupPaths(first.Groups), groupPaths(second.Groups))

	// touching one file invalidates exactly that entry
	later := time.Now().Add(time.Hour)
	require.NoError(t, fs.Chtimes("/photos/b.png", later, later))

	third, err := d.Deduplicate(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, int32(4), hasher.calls.Load())
	assert.Equal(t, 1, third.Stats.Computed)
	assert.Equal(t, 2, third.Stats.CacheHits)
}

func TestDeduplicate_DeterministicAcrossWorkerCounts(t *testing.T) {
	fs := afero.NewMemMapFs()
	var paths []string
	for i := 0; i < 24; i++ {
		path := filepath.Join("/imgs", string(rune('a'+i))+".png")
		writePNG(t, fs, path, splitImage(i%3 == 0))
		paths = append(paths, path)
	}

	var previous [][]string
	for _, workers := range []int{1, 3, 16} {
		d := newDeduplicator(fs, database.NewMemory(testProfile), newCountingHasher(t))
		d.Workers = workers
		result, err := d.Deduplicate(context.Background(), paths)
		require.NoError(t, err)

		got := groupPaths(result.Groups)
		if previous != nil {
			assert.Equal(t, previous, got, "workers=%d", workers)
		}
		previous = got
	}
	require.Len(t, previous, 2)
	assert.Equal(t, "/imgs/a.png", previous[0][0])
}

func TestDeduplicate_SelectionPolicy(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/a.png", splitImage(true))
	writePNG(t, fs, "/b.png", splitImage(true))
	old := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, fs.Chtimes("/b.png", old, old))

	d := newDeduplicator(fs, database.NewMemory(testProfile), newCountingHasher(t))
	d.Policy = grouping.PolicyOldest
	result, err := d.Deduplicate(context.Background(), []string{"/a.png", "/b.png"})
	require.NoError(t, err)
	require.Len(t, result.Representatives, 1)
	assert.Equal(t, "/b.png", result.Representatives[0].Path)
}

func TestDeduplicate_MissingPathIsFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/a.png", splitImage(true))

	d := newDeduplicator(fs, database.NewMemory(testProfile), newCountingHasher(t))
	result, err := d.Deduplicate(context.Background(), []string{"/gone.png", "/a.png"})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "/gone.png", result.Failures[0].Path)
	assert.Len(t, result.Groups, 1)
}

func TestDeduplicate_Cancelled(t *testing.T) {
	fs := photoLibrary(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newDeduplicator(fs, database.NewMemory(testProfile), newCountingHasher(t))
	result, err := d.Deduplicate(ctx, []string{"/photos/a.png", "/photos/b.png"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

type failingFlushCache struct {
	*database.Cache
}

func (failingFlushCache) Flush() error {
	return errors.New("disk full")
}

func TestDeduplicate_FlushFailureIsWarning(t *testing.T) {
	fs := photoLibrary(t)
	d := newDeduplicator(fs, failingFlushCache{database.NewMemory(testProfile)}, newCountingHasher(t))

	result, err := d.Deduplicate(context.Background(), []string{"/photos/a.png", "/photos/b.png"})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Error(), "disk full")
	assert.Len(t, result.Groups, 1, "results survive a failed flush")
}

func TestDeduplicate_RecoveredCacheIsWarning(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "hashes.db")
	require.NoError(t, os.WriteFile(cachePath, bytes.Repeat([]byte("garbage!"), 4096), 0644))
	cache, err := database.OpenSQLite(cachePath, testProfile, database.Options{})
	require.NoError(t, err)
	defer cache.Close()

	fs := photoLibrary(t)
	d := newDeduplicator(fs, cache, newCountingHasher(t))
	result, err := d.Deduplicate(context.Background(), []string{"/photos/a.png"})
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	var corrupt *database.CacheCorruptionError
	assert.True(t, errors.As(result.Warnings[0], &corrupt))
	assert.Equal(t, 1, result.Stats.Computed)
}

func TestDeduplicate_Defaults(t *testing.T) {
	d := &Deduplicator{Fs: photoLibrary(t)}
	result, err := d.Deduplicate(context.Background(), []string{"/photos/a.png", "/photos/b.png"})
	require.NoError(t, err)
	assert.Len(t, result.Groups, 1)

	d.Threshold = -1
	_, err = d.Deduplicate(context.Background(), nil)
	assert.Error(t, err)
}

// ==== Progress Tests ====

func TestProgressTracker(t *testing.T) {
	fs := photoLibrary(t)
	paths, err := EnumerateImages(fs, "/photos")
	require.NoError(t, err)

	var out bytes.Buffer
	tracker := NewProgressTracker(&out, "Hashing images")
	d := newDeduplicator(fs, database.NewMemory(testProfile), newCountingHasher(t))
	d.Progress = tracker

	_, err = d.Deduplicate(context.Background(), paths)
	require.NoError(t, err)

	processed, cached, failed := tracker.Counts()
	assert.Equal(t, 4, processed)
	assert.Zero(t, cached)
	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "Hashing images")
}
