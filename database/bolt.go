package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"runtime/debug"
	"time"

	"github.com/OiAnthony/image-deduplicate/logging"

	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

var bucketFingerprints = []byte("fingerprints")

// OpenBolt opens (or creates) a bbolt-backed cache at dbPath
func OpenBolt(dbPath string, profile Profile, opts Options) (*Cache, error) {
	return openWithRecovery(dbPath, profile, opts, openBoltBackend)
}

type boltBackend struct {
	db   *bolt.DB
	path string
}

// recoverDamage turns a panic raised while bbolt walks damaged pages into a
// CacheCorruptionError. It must be deferred directly.
func recoverDamage(path string, err *error, cleanup func()) {
	r := recover()
	if r == nil {
		return
	}
	if cleanup != nil {
		func() {
			defer func() { _ = recover() }()
			cleanup()
		}()
	}
	*err = &CacheCorruptionError{Path: path, Err: fmt.Errorf("panic reading store: %v", r)}
}

func openBoltBackend(dbPath string) (b backend, err error) {
	var db *bolt.DB
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer recoverDamage(dbPath, &err, func() {
		b = nil
		if db != nil {
			db.Close()
		}
	})

	db, err = bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if errors.Is(err, berrors.ErrTimeout) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return nil, &CacheCorruptionError{Path: dbPath, Err: err}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFingerprints)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", bucketFingerprints, err)
	}
	return &boltBackend{db: db, path: dbPath}, nil
}

// Load reads every entry. Individual values that fail to decode are skipped;
// damaged pages fail the whole load with a CacheCorruptionError.
func (b *boltBackend) Load() (entries []Entry, err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer recoverDamage(b.path, &err, func() { entries = nil })

	err = b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFingerprints).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				logging.LogWarning("Skipping unreadable cache entry %q: %v", k, err)
				return nil
			}
			e.Path = string(k)
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, &CacheCorruptionError{Path: b.path, Err: err}
	}
	return entries, nil
}

func (b *boltBackend) Save(entries []Entry) (err error) {
	defer recoverDamage(b.path, &err, nil)
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketFingerprints)
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal entry %s: %w", e.Path, err)
			}
			if err := bucket.Put([]byte(e.Path), data); err != nil {
				return fmt.Errorf("put %s: %w", e.Path, err)
			}
		}
		return nil
	})
}

func (b *boltBackend) Delete(paths []string) (err error) {
	defer recoverDamage(b.path, &err, nil)
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketFingerprints)
		for _, p := range paths {
			if err := bucket.Delete([]byte(p)); err != nil {
				return fmt.Errorf("delete %s: %w", p, err)
			}
		}
		return nil
	})
}

func (b *boltBackend) Clear() (err error) {
	defer recoverDamage(b.path, &err, nil)
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketFingerprints); err != nil && !errors.Is(err, berrors.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketFingerprints)
		return err
	})
}

func (b *boltBackend) Close() error {
	return b.db.Close()
}
