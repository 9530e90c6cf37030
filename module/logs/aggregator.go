// Package logs captures the combined output of every node of a run into per-node log files.
package logs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/onflow/localnet/model/localnet"
)

// tailWindow bounds how much of a log file Tail reads.
const tailWindow = 64 * 1024

// Handle is the log sink of one node. The node process writes to the file directly, so draining never
// blocks the process.
type Handle struct {
	Node localnet.NodeID
	Path string

	file     *os.File
	once     sync.Once
	flushErr error
}

// Writer returns the file the node's stdout and stderr are connected to.
func (h *Handle) Writer() *os.File {
	return h.file
}

// Flush syncs and closes the sink. It is safe to call more than once.
func (h *Handle) Flush() error {
	h.once.Do(func() {
		if err := h.file.Sync(); err != nil && !errors.Is(err, os.ErrClosed) {
			h.flushErr = fmt.Errorf("could not sync log of %s: %w", h.Node, err)
		}
		if err := h.file.Close(); err != nil && h.flushErr == nil {
			h.flushErr = fmt.Errorf("could not close log of %s: %w", h.Node, err)
		}
	})
	return h.flushErr
}

// Entry describes the log of one node.
type Entry struct {
	Node localnet.NodeID
	Path string
	Size int64
}

// Aggregator is the LogAggregator of one run.
type Aggregator struct {
	log   zerolog.Logger
	runID string
	dir   string

	mu      sync.Mutex
	handles map[localnet.NodeID]*Handle
}

func NewAggregator(log zerolog.Logger, runID string, runDir string) *Aggregator {
	return &Aggregator{
		log:     log.With().Str("component", "logs").Logger(),
		runID:   runID,
		dir:     filepath.Join(runDir, localnet.DirnameLogs),
		handles: make(map[localnet.NodeID]*Handle),
	}
}

// Dir is the directory the log files are written to.
func (a *Aggregator) Dir() string {
	return a.dir
}

// Path returns the log file of the given node.
func (a *Aggregator) Path(id localnet.NodeID) string {
	return filepath.Join(a.dir, fmt.Sprintf(filepath.Base(localnet.PathNodeLog), id))
}

// Attach opens the append-only sink of a node. Attaching a node again reuses its file, so output of a
// node's init step and of the node itself end up in the same log.
func (a *Aggregator) Attach(spec localnet.NodeSpec) (*Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create log dir: %w", err)
	}

	path := a.Path(spec.ID)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open log of %s: %w", spec.ID, err)
	}

	if previous, ok := a.handles[spec.ID]; ok {
		_ = previous.Flush()
	}
	handle := &Handle{Node: spec.ID, Path: path, file: file}
	a.handles[spec.ID] = handle

	a.log.Debug().Str("node", spec.ID.String()).Str("path", path).Msg("log attached")
	return handle, nil
}

// Flush flushes the sink of the given node, if it is attached.
func (a *Aggregator) Flush(id localnet.NodeID) error {
	a.mu.Lock()
	handle, ok := a.handles[id]
	a.mu.Unlock()

	if !ok {
		return nil
	}
	return handle.Flush()
}

// FlushAll flushes every attached sink and reports all failures.
func (a *Aggregator) FlushAll() error {
	a.mu.Lock()
	handles := make([]*Handle, 0, len(a.handles))
	for _, handle := range a.handles {
		handles = append(handles, handle)
	}
	a.mu.Unlock()

	var errs *multierror.Error
	for _, handle := range handles {
		if err := handle.Flush(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Entries lists the log files of the run, ordered by node id. Logs of nodes attached by an earlier
// process are included.
func (a *Aggregator) Entries() ([]Entry, error) {
	files, err := os.ReadDir(a.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not list logs: %w", err)
	}

	var entries []Entry
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".log" {
			continue
		}
		info, err := file.Info()
		if err != nil {
			return nil, fmt.Errorf("could not stat log %s: %w", file.Name(), err)
		}
		entries = append(entries, Entry{
			Node: localnet.NodeID(strings.TrimSuffix(file.Name(), ".log")),
			Path: filepath.Join(a.dir, file.Name()),
			Size: info.Size(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Node < entries[j].Node
	})
	return entries, nil
}

// Dump returns the log contents of every node of the run. It can be called at any time, including
// while nodes are still writing.
func (a *Aggregator) Dump(runID string) (map[localnet.NodeID][]byte, error) {
	if runID != a.runID {
		return nil, fmt.Errorf("unknown run %q, logs belong to run %q", runID, a.runID)
	}

	entries, err := a.Entries()
	if err != nil {
		return nil, err
	}

	dump := make(map[localnet.NodeID][]byte, len(entries))
	for _, entry := range entries {
		data, err := os.ReadFile(entry.Path)
		if err != nil {
			return nil, fmt.Errorf("could not read log of %s: %w", entry.Node, err)
		}
		dump[entry.Node] = data
	}
	return dump, nil
}

// Tail returns up to the last n lines of the node's log.
func (a *Aggregator) Tail(id localnet.NodeID, n int) ([]string, error) {
	file, err := os.Open(a.Path(id))
	if err != nil {
		return nil, fmt.Errorf("could not open log of %s: %w", id, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat log of %s: %w", id, err)
	}
	offset := info.Size() - tailWindow
	if offset < 0 {
		offset = 0
	}
	data, err := io.ReadAll(io.NewSectionReader(file, offset, info.Size()-offset))
	if err != nil {
		return nil, fmt.Errorf("could not read log of %s: %w", id, err)
	}

	data = bytes.TrimRight(data, "\n")
	if len(data) == 0 {
		return nil, nil
	}
	lines := strings.Split(string(data), "\n")
	if offset > 0 {
		// the first line is most likely cut
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
