// Package database persists fingerprints between runs.
//
// A Cache keeps every entry in memory and writes changed entries back to a
// backend (SQLite, bbolt, or nothing at all). Entries are keyed by path and are
// only reused when the file's size and modification time still match and the
// entry was computed with the same hash profile.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/OiAnthony/image-deduplicate/logging"
	"github.com/OiAnthony/image-deduplicate/types"
)

// Backend names accepted by Open
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// DefaultFlushEvery is the number of pending entries that triggers an incremental flush
const DefaultFlushEvery = 64

// HashCache is the lookup/store/flush contract the scanner depends on
type HashCache interface {
	Lookup(path string, size int64, modTime time.Time) (types.Fingerprint, bool)
	Store(path string, size int64, modTime time.Time, fp types.Fingerprint) error
	Flush() error
}

// Profile identifies how fingerprints were computed
type Profile struct {
	Algorithm string
	HashSize  int
}

// Bits is the fingerprint length produced by the profile
func (p Profile) Bits() int {
	return p.HashSize * p.HashSize
}

func (p Profile) String() string {
	return fmt.Sprintf("%s/%d", p.Algorithm, p.HashSize)
}

// Entry is one persisted fingerprint
type Entry struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	ModTime   int64  `json:"mod_time"` // unix nanoseconds
	Algorithm string `json:"algorithm"`
	HashSize  int    `json:"hash_size"`
	Hash      string `json:"hash"`
}

// Profile returns the profile the entry was computed with
func (e Entry) Profile() Profile {
	return Profile{Algorithm: e.Algorithm, HashSize: e.HashSize}
}

// Matches reports whether the entry is still valid for a file with the given metadata
func (e Entry) Matches(size int64, modTime time.Time) bool {
	return e.Size == size && e.ModTime == modTime.UnixNano()
}

// CacheCorruptionError reports a persistent store that could not be read.
// The cache recovers from it by starting empty.
type CacheCorruptionError struct {
	Path    string
	MovedTo string
	Err     error
}

func (e *CacheCorruptionError) Error() string {
	if e.MovedTo != "" {
		return fmt.Sprintf("cache %s is unreadable (moved to %s): %v", e.Path, e.MovedTo, e.Err)
	}
	return fmt.Sprintf("cache %s is unreadable: %v", e.Path, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error {
	return e.Err
}

// Options tune a Cache
type Options struct {
	// FlushEvery flushes inline once this many entries are pending. 0 disables it.
	FlushEvery int
}

// backend is the durable half of a Cache. Load and the open functions report
// unreadable data as *CacheCorruptionError.
type backend interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
	Delete(paths []string) error
	Clear() error
	Close() error
}

// Cache is a write-back fingerprint cache safe for concurrent use
type Cache struct {
	mu         sync.RWMutex
	profile    Profile
	entries    map[string]Entry
	pending    map[string]struct{}
	backend    backend
	flushEvery int
	recovered  error
}

// Open opens the cache backend by name
func Open(backendName, path string, profile Profile, opts Options) (*Cache, error) {
	switch backendName {
	case BackendSQLite:
		return OpenSQLite(path, profile, opts)
	case BackendBolt:
		return OpenBolt(path, profile, opts)
	case BackendMemory:
		return NewMemory(profile), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backendName)
	}
}

// NewMemory returns a cache that never persists anything
func NewMemory(profile Profile) *Cache {
	return newCache(nil, nil, profile, Options{}, nil)
}

func newCache(b backend, entries []Entry, profile Profile, opts Options, recovered error) *Cache {
	c := &Cache{
		profile:    profile,
		entries:    make(map[string]Entry, len(entries)),
		pending:    make(map[string]struct{}),
		backend:    b,
		flushEvery: opts.FlushEvery,
		recovered:  recovered,
	}
	for _, e := range entries {
		c.entries[e.Path] = e
	}
	return c
}

// openWithRecovery opens and loads a file-backed store. If the store is
// unreadable the file is moved aside and a fresh store is created in its place.
func openWithRecovery(path string, profile Profile, opts Options, openFn func(string) (backend, error)) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	b, entries, err := openAndLoad(path, openFn)
	if err == nil {
		return newCache(b, entries, profile, opts, nil), nil
	}

	var corrupt *CacheCorruptionError
	if !errors.As(err, &corrupt) {
		return nil, err
	}

	moved, mvErr := quarantine(path)
	if mvErr != nil {
		return nil, fmt.Errorf("move unreadable cache aside: %w", mvErr)
	}
	corrupt.MovedTo = moved
	logging.LogWarning("Hash cache %s is unreadable, starting empty: %v", path, corrupt.Err)

	b, entries, err = openAndLoad(path, openFn)
	if err != nil {
		return nil, err
	}
	return newCache(b, entries, profile, opts, corrupt), nil
}

func openAndLoad(path string, openFn func(string) (backend, error)) (backend, []Entry, error) {
	b, err := openFn(path)
	if err != nil {
		return nil, nil, err
	}
	entries, err := b.Load()
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	return b, entries, nil
}

// quarantine renames an unreadable store (and any rollback journal) out of the way
func quarantine(path string) (string, error) {
	moved := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UnixNano())
	if err := os.Rename(path, moved); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	journal := path + "-journal"
	if _, err := os.Stat(journal); err == nil {
		if err := os.Rename(journal, moved+"-journal"); err != nil {
			return "", err
		}
	}
	return moved, nil
}

// Recovered returns the corruption the cache recovered from when it was opened, if any
func (c *Cache) Recovered() error {
	return c.recovered
}

// Profile returns the profile lookups are matched against
func (c *Cache) Profile() Profile {
	return c.profile
}

// Lookup returns the stored fingerprint for path if size, modTime and profile all match
func (c *Cache) Lookup(path string, size int64, modTime time.Time) (types.Fingerprint, bool) {
	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()

	if !ok || !e.Matches(size, modTime) || e.Profile() != c.profile {
		return types.Fingerprint{}, false
	}

	fp, err := types.ParseFingerprint(e.Hash, c.profile.Bits())
	if err != nil {
		logging.DebugLog("Ignoring unreadable cache entry for %s: %v", path, err)
		return types.Fingerprint{}, false
	}
	return fp, true
}

// Store inserts or overwrites the entry for path
func (c *Cache) Store(path string, size int64, modTime time.Time, fp types.Fingerprint) error {
	if fp.Len() != c.profile.Bits() {
		return fmt.Errorf("store %s: fingerprint has %d bits, cache profile %s expects %d",
			path, fp.Len(), c.profile, c.profile.Bits())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[path] = Entry{
		Path:      path,
		Size:      size,
		ModTime:   modTime.UnixNano(),
		Algorithm: c.profile.Algorithm,
		HashSize:  c.profile.HashSize,
		Hash:      fp.String(),
	}
	if c.backend == nil {
		return nil
	}

	c.pending[path] = struct{}{}
	if c.flushEvery > 0 && len(c.pending) >= c.flushEvery {
		return c.flushLocked()
	}
	return nil
}

// Flush persists all pending entries. It is safe to call repeatedly.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	if c.backend == nil || len(c.pending) == 0 {
		return nil
	}

	batch := make([]Entry, 0, len(c.pending))
	for path := range c.pending {
		batch = append(batch, c.entries[path])
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	if err := c.backend.Save(batch); err != nil {
		return fmt.Errorf("flush %d cache entries: %w", len(batch), err)
	}
	c.pending = make(map[string]struct{})
	logging.DebugLog("Flushed %d cache entries", len(batch))
	return nil
}

// Len returns the number of entries, across all profiles
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a snapshot of all entries sorted by path
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// CacheStats summarizes the cache contents
type CacheStats struct {
	Entries   int
	Pending   int
	ByProfile map[Profile]int
}

// Stats returns entry counts overall and per profile
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		Entries:   len(c.entries),
		Pending:   len(c.pending),
		ByProfile: make(map[Profile]int),
	}
	for _, e := range c.entries {
		stats.ByProfile[e.Profile()]++
	}
	return stats
}

// Prune deletes every entry for which keep returns false and returns how many were removed
func (c *Cache) Prune(keep func(Entry) bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var doomed []string
	for path, e := range c.entries {
		if !keep(e) {
			doomed = append(doomed, path)
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	sort.Strings(doomed)

	if c.backend != nil {
		if err := c.backend.Delete(doomed); err != nil {
			return 0, fmt.Errorf("prune cache: %w", err)
		}
	}
	for _, path := range doomed {
		delete(c.entries, path)
		delete(c.pending, path)
	}
	return len(doomed), nil
}

// Clear removes every entry
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend != nil {
		if err := c.backend.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	c.entries = make(map[string]Entry)
	c.pending = make(map[string]struct{})
	return nil
}

// Close flushes pending entries and releases the backend
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return nil
	}
	flushErr := c.flushLocked()
	closeErr := c.backend.Close()
	c.backend = nil
	return errors.Join(flushErr, closeErr)
}
