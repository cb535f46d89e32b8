package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/mattn/go-sqlite3"
)

// OpenSQLite opens (or creates) a SQLite-backed cache at dbPath
func OpenSQLite(dbPath string, profile Profile, opts Options) (*Cache, error) {
	return openWithRecovery(dbPath, profile, opts, openSQLiteBackend)
}

type sqliteBackend struct {
	path string
	db   *sql.DB
}

func openSQLiteBackend(dbPath string) (backend, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; the Cache already serializes flushes
	db.SetMaxOpenConns(1)

	b := &sqliteBackend{path: dbPath, db: db}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, b.classify(err)
	}
	return b, nil
}

func (b *sqliteBackend) initSchema() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS image_hashes (
		path TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		mod_time INTEGER NOT NULL,
		algorithm TEXT NOT NULL,
		hash_size INTEGER NOT NULL,
		hash_value TEXT NOT NULL,
		updated_at TEXT
	);`

	_, err := b.db.Exec(createTableSQL)
	return err
}

// classify marks errors caused by unreadable data as corruption. Errors from
// the environment (permissions, locks, full disk) are returned unchanged.
func (b *sqliteBackend) classify(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return err
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrPerm, sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrReadonly,
			sqlite3.ErrCantOpen, sqlite3.ErrFull, sqlite3.ErrNomem, sqlite3.ErrIoErr:
			return err
		}
	}
	return &CacheCorruptionError{Path: b.path, Err: err}
}

func (b *sqliteBackend) Load() ([]Entry, error) {
	rows, err := b.db.Query(`SELECT path, size, mod_time, algorithm, hash_size, hash_value FROM image_hashes`)
	if err != nil {
		return nil, b.classify(err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Size, &e.ModTime, &e.Algorithm, &e.HashSize, &e.Hash); err != nil {
			return nil, b.classify(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, b.classify(err)
	}
	return entries, nil
}

// Save writes the batch in a single transaction, so a crash leaves either all or none of it
func (b *sqliteBackend) Save(entries []Entry) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO image_hashes (
			path, size, mod_time, algorithm, hash_size, hash_value, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("cannot prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Format(time.RFC3339)
	for _, e := range entries {
		if _, err := stmt.Exec(e.Path, e.Size, e.ModTime, e.Algorithm, e.HashSize, e.Hash, now); err != nil {
			return fmt.Errorf("cannot insert data for %s: %w", e.Path, err)
		}
	}
	return tx.Commit()
}

func (b *sqliteBackend) Delete(paths []string) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`DELETE FROM image_hashes WHERE path = ?`)
	if err != nil {
		return fmt.Errorf("cannot prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.Exec(p); err != nil {
			return fmt.Errorf("cannot delete %s: %w", p, err)
		}
	}
	return tx.Commit()
}

func (b *sqliteBackend) Clear() error {
	_, err := b.db.Exec(`DELETE FROM image_hashes`)
	return err
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
