// Package runstate persists the record of a run, so that later invocations of the orchestrator can
// reopen it.
package runstate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/storage"
	ioutils "github.com/onflow/localnet/utils/io"
)

// removeAll is replaced in tests.
var removeAll = os.RemoveAll

// NodeRecord identifies the process of one node.
type NodeRecord struct {
	ID    localnet.NodeID      `yaml:"id"`
	Role  localnet.Role        `yaml:"role"`
	PID   int                  `yaml:"pid"`
	State localnet.HealthState `yaml:"state"`
	// CreateTime is the process creation time in unix milliseconds.
	CreateTime int64  `yaml:"create_time"`
	Log        string `yaml:"log,omitempty"`
}

// Record is the persisted state of a run.
type Record struct {
	RunID     string             `yaml:"run_id"`
	State     localnet.RunState  `yaml:"state"`
	UpdatedAt time.Time          `yaml:"updated_at"`
	Topology  *localnet.Topology `yaml:"topology,omitempty"`
	Nodes     []NodeRecord       `yaml:"nodes,omitempty"`
	// Error is the failure that moved the run to Failed.
	Error string `yaml:"error,omitempty"`
}

// Store keeps the record of the run living in one data directory.
type Store struct {
	dir  string
	lock *ioutils.FileLock
}

func NewStore(dir string) *Store {
	return &Store{
		dir:  dir,
		lock: ioutils.NewFileLock(dir),
	}
}

// Dir is the run directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path is the path of the run record.
func (s *Store) Path() string {
	return filepath.Join(s.dir, localnet.FilenameRunRecord)
}

// Lock acquires exclusive use of the run directory. It fails immediately if another process holds it.
func (s *Store) Lock() error {
	return s.lock.Lock()
}

// Unlock releases the run directory.
func (s *Store) Unlock() error {
	return s.lock.Unlock()
}

// Save replaces the record atomically.
func (s *Store) Save(record *Record) error {
	record.UpdatedAt = time.Now().UTC().Round(0)
	if err := ioutils.WriteYAML(s.Path(), record); err != nil {
		return fmt.Errorf("could not save run record: %w", err)
	}
	return nil
}

// Exists returns true if a run is recorded in the directory.
func (s *Store) Exists() bool {
	return ioutils.FileExists(s.Path())
}

// Load reads the record. storage.ErrNotFound is returned if no run exists in the directory.
func (s *Store) Load() (*Record, error) {
	if !s.Exists() {
		return nil, fmt.Errorf("no run in %s: %w", s.dir, storage.ErrNotFound)
	}

	var record Record
	if err := ioutils.ReadYAML(s.Path(), &record); err != nil {
		return nil, fmt.Errorf("could not load run record: %w", err)
	}
	return &record, nil
}

// Clear removes every artifact of the run from the directory except the lock file, which is still held
// by the caller. Removing what does not exist succeeds. A failed removal does not stop the others, the
// errors are returned together.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not list run dir: %w", err)
	}

	var result *multierror.Error
	for _, entry := range entries {
		if entry.Name() == ioutils.FilenameLock {
			continue
		}
		if err := removeAll(filepath.Join(s.dir, entry.Name())); err != nil {
			result = multierror.Append(result, fmt.Errorf("could not remove %s: %w", entry.Name(), err))
		}
	}
	return result.ErrorOrNil()
}

// Remove deletes the run directory, lock file included. The lock must be released first.
func (s *Store) Remove() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("could not remove run dir: %w", err)
	}
	return nil
}
