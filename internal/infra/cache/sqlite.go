// Package cache provides a SQLite-based store for the library catalog and
// the last known play queue.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "2"

	// DefaultDBPath is the default path for the cache database.
	DefaultDBPath = "data/queue.db"
)

// ErrNotOpen is returned when the database is used before Open.
var ErrNotOpen = errors.New("database not open")

// DB represents the SQLite cache database.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewDB creates a new cache database instance.
func NewDB(path string) *DB {
	if path == "" {
		path = DefaultDBPath
	}
	return &DB{
		path: path,
	}
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("Cache database opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

// initSchema initializes the database schema.
func (d *DB) initSchema() error {
	currentVersion := d.getSchemaVersion()

	if currentVersion == "" {
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		// Everything here can be downloaded again, so rebuild instead of migrating.
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Rebuilding cache schema")
		if err := d.dropSchema(); err != nil {
			return err
		}
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	return nil
}

// catalogTables lists the library tables, children first.
var catalogTables = []string{"track_artists", "album_tracks", "playlist_tracks", "tracks", "albums", "playlists", "artists"}

// cacheTables lists every data table.
var cacheTables = append(slices.Clone(catalogTables), "queue_snapshot")

// dropSchema removes the data tables and sync markers.
func (d *DB) dropSchema() error {
	for _, table := range cacheTables {
		if _, err := d.db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	_, err := d.db.Exec("DELETE FROM cache_meta")
	return err
}

// createSchema creates all database tables.
func (d *DB) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artists (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		artwork_id INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS albums (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		artist_id INTEGER DEFAULT 0,
		year INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS tracks (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		track_number INTEGER DEFAULT 0,
		year INTEGER DEFAULT 0,
		genre TEXT,
		length INTEGER DEFAULT 0,
		album_id INTEGER DEFAULT 0,
		artist_id INTEGER DEFAULT 0,
		artwork_id INTEGER DEFAULT 0,
		file TEXT NOT NULL,
		size INTEGER DEFAULT 0,
		uploaded_at TEXT
	);

	-- Credited artists per track, primary first
	CREATE TABLE IF NOT EXISTS track_artists (
		track_id INTEGER NOT NULL,
		artist_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (track_id, artist_id),
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
	);

	-- Album track order
	CREATE TABLE IF NOT EXISTS album_tracks (
		album_id INTEGER NOT NULL,
		track_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (album_id, position),
		FOREIGN KEY (album_id) REFERENCES albums(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS playlists (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);

	-- Playlist order; a track may appear more than once
	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id INTEGER NOT NULL,
		track_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (playlist_id, position),
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE
	);

	-- Last server snapshot, a single row
	CREATE TABLE IF NOT EXISTS queue_snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL,
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album_id);
	CREATE INDEX IF NOT EXISTS idx_track_artists_artist ON track_artists(artist_id);
	CREATE INDEX IF NOT EXISTS idx_album_tracks_track ON album_tracks(track_id);
	`

	_, err := d.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("Cache schema created")
	return nil
}

// getSchemaVersion returns the current schema version.
func (d *DB) getSchemaVersion() string {
	var version string
	err := d.db.QueryRow("SELECT value FROM cache_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// setMeta sets a metadata value.
func (d *DB) setMeta(key, value string) error {
	return setMeta(d.db, key, value)
}

func setMeta(e execer, key, value string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := e.Exec(`
		INSERT INTO cache_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?
	`, key, value, now, value, now)
	return err
}

// getMeta gets a metadata value.
func (d *DB) getMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM cache_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SchemaVersion returns the stored schema version.
func (d *DB) SchemaVersion() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return "", ErrNotOpen
	}
	return d.getMeta("schema_version")
}

// Clear removes all catalog and queue data (but keeps schema).
func (d *DB) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return ErrNotOpen
	}

	for _, table := range cacheTables {
		if _, err := d.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if _, err := d.db.Exec("DELETE FROM cache_meta WHERE key IN ('last_modified', 'last_updated')"); err != nil {
		return fmt.Errorf("failed to clear sync markers: %w", err)
	}

	log.Info().Msg("Cache cleared")
	return nil
}

// conn returns the open handle or ErrNotOpen.
func (d *DB) conn() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrNotOpen
	}
	return d.db, nil
}
