package io

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FilenameLock is the name of the lock file created inside a locked directory.
const FilenameLock = "run.lock"

// FileLock is an exclusive lock on a directory, held through a lock file inside it. It keeps two
// orchestrator processes from mutating the same run directory at the same time.
type FileLock struct {
	lockFile *flock.Flock
	path     string
}

// NewFileLock creates a lock for the given directory. The directory is created on Lock if missing.
func NewFileLock(dir string) *FileLock {
	lockPath := filepath.Join(dir, FilenameLock)
	return &FileLock{
		lockFile: flock.New(lockPath),
		path:     lockPath,
	}
}

// Lock acquires the lock without blocking. An error is returned if another process holds it.
func (fl *FileLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(fl.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for lock file %s: %w", fl.path, err)
	}

	locked, err := fl.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire file lock at %s: %w", fl.path, err)
	}
	if !locked {
		return fmt.Errorf("cannot acquire exclusive lock on %s: another process is already using this run", fl.path)
	}
	return nil
}

// Unlock releases the lock. Unlocking a lock that is not held is a no-op.
func (fl *FileLock) Unlock() error {
	if err := fl.lockFile.Unlock(); err != nil {
		return fmt.Errorf("failed to release file lock at %s: %w", fl.path, err)
	}
	return nil
}

// Held returns true if this instance currently holds the lock.
func (fl *FileLock) Held() bool {
	return fl.lockFile.Locked()
}

// Path returns the path to the lock file.
func (fl *FileLock) Path() string {
	return fl.path
}

