// Package cache implements the persistent lookup cache used by the registry
// client and the alternative finder. Entries never expire: once a key is
// written it is served for every later lookup until the store is cleared.
package cache

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/depshift/depshift/internal/utils"
	_ "modernc.org/sqlite"
)

const (
	// Key namespaces, kept separate so registry metadata and replacement
	// suggestions for the same package never collide.
	InfoKeyPrefix = "npmInfo:"
	AltKeyPrefix  = "alt:"
)

// Store is a flat key-value cache backed by SQLite. All entries are loaded
// into memory once at open time; every Set is persisted immediately.
//
// A missing or corrupt database is treated as an empty cache. Startup never
// fails because of the cache: when SQLite can't be opened the store degrades
// to memory-only and lookups simply stop surviving the process.
type Store struct {
	sql     *sql.DB
	path    string
	entries map[string]string
}

// Open loads the cache at path (empty string means the default location
// under ~/.config/depshift).
func Open(path string) *Store {
	s := &Store{entries: make(map[string]string)}

	absPath, err := utils.GetAbsCachePath(path)
	if err != nil {
		utils.Log.Warn("Could not resolve cache path, using in-memory cache: ", err)
		return s
	}
	s.path = absPath

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		utils.Log.Warn("Could not create cache directory, using in-memory cache: ", err)
		return s
	}

	dsn := "file:" + absPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		utils.Log.Warn("Could not open lookup cache, using in-memory cache: ", err)
		return s
	}
	if err := db.Ping(); err != nil {
		utils.Log.Warn("Could not open lookup cache, using in-memory cache: ", err)
		db.Close()
		return s
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS lookup_cache (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
	`); err != nil {
		utils.Log.Warn("Lookup cache schema init failed, using in-memory cache: ", err)
		db.Close()
		return s
	}
	s.sql = db

	rows, err := db.Query("SELECT key, value FROM lookup_cache")
	if err != nil {
		// A corrupt store behaves like an empty one.
		utils.Log.Debug("Lookup cache read failed, starting empty: ", err)
		return s
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			utils.Log.Debug("Lookup cache row scan failed, starting empty: ", err)
			s.entries = make(map[string]string)
			return s
		}
		s.entries[k] = v
	}
	if err := rows.Err(); err != nil {
		utils.Log.Debug("Lookup cache read failed, starting empty: ", err)
		s.entries = make(map[string]string)
	}
	return s
}

// Get returns the cached value for key, if any.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.entries[key]
	return v, ok
}

// Set stores value under key and persists it immediately.
func (s *Store) Set(key, value string) {
	s.entries[key] = value
	if s.sql == nil {
		return
	}
	if _, err := s.sql.Exec(`INSERT INTO lookup_cache(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
		utils.Log.Warn("Failed to persist cache entry ", key, ": ", err)
	}
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Path returns the on-disk location of the store, or "" when memory-only.
func (s *Store) Path() string {
	if s.sql == nil {
		return ""
	}
	return s.path
}

// Clear removes every entry, in memory and on disk.
func (s *Store) Clear() error {
	s.entries = make(map[string]string)
	if s.sql == nil {
		return nil
	}
	_, err := s.sql.Exec("DELETE FROM lookup_cache")
	return err
}

func (s *Store) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}
