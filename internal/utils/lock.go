package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
)

// CacheLock manages a file-based lock for the SQLite lookup cache.
type CacheLock struct {
	lock *flock.Flock
	path string
}

// NewCacheLock creates a new lock for the given cache database path.
func NewCacheLock(cachePath string) (*CacheLock, error) {
	absPath, err := GetAbsCachePath(cachePath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute cache path: %w", err)
	}
	lockPath := absPath + lockFileSuffix
	return &CacheLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

// Lock acquires the cache lock, waiting if necessary.
// It will print a message if it has to wait.
func (l *CacheLock) Lock() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	if !locked {
		fmt.Fprintf(os.Stderr, "Another depshift process is writing to the cache, waiting for it to finish...\n")
		if err := l.lock.Lock(); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	return nil
}

// Unlock releases the cache lock.
func (l *CacheLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		// Suppress error if the lock file doesn't exist, as it means we don't hold the lock.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// GetAbsCachePath resolves the cache database path.
func GetAbsCachePath(cachePath string) (string, error) {
	if cachePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "depshift", "depshift.sqlite"), nil
	}
	return filepath.Abs(cachePath)
}
