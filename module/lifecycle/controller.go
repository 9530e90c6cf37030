// Package lifecycle drives one run of a local network through its states: planning, the layered start of
// its nodes, supervision, and teardown.
package lifecycle

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/onflow/localnet/config"
	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module/logs"
	"github.com/onflow/localnet/module/process"
	"github.com/onflow/localnet/storage"
	"github.com/onflow/localnet/storage/runstate"
)

// EventHandler consumes lifecycle events. Handlers are called synchronously and must not block.
type EventHandler func(localnet.Event)

// ErrReadOnly is returned by mutating operations of a controller opened with OpenReadOnly.
var ErrReadOnly = errors.New("run opened read-only")

// Controller is the LifecycleController of the run living in the configured data directory. It
// exclusively owns the node processes of the run.
//
// Operations (Start, Stop, Clean, Supervise) are serialized; Status and DumpLogs may be called at any time.
type Controller struct {
	log      zerolog.Logger
	cfg      config.Config
	store    *runstate.Store
	handlers []EventHandler
	env      []string
	now      func() time.Time
	readOnly bool
	locked   bool

	opMu   sync.Mutex
	saveMu sync.Mutex

	mu       sync.RWMutex
	state    localnet.RunState
	runID    string
	topology *localnet.Topology
	failure  string
	logs     *logs.Aggregator
	procs    *process.Manager
	nodes    map[localnet.NodeID]*process.RunningNode
	// launched holds the nodes in launch order.
	launched []*process.RunningNode
	// recorded holds the persisted node records of a run opened read-only.
	recorded map[localnet.NodeID]runstate.NodeRecord
}

func NewController(log zerolog.Logger, cfg config.Config) *Controller {
	return &Controller{
		log:   log.With().Str("component", "lifecycle").Logger(),
		cfg:   cfg,
		store: runstate.NewStore(cfg.DataDir),
		now:   time.Now,
		state: localnet.RunIdle,
		nodes: make(map[localnet.NodeID]*process.RunningNode),
	}
}

// AddEventHandler registers a handler for every subsequent event.
func (c *Controller) AddEventHandler(handler EventHandler) *Controller {
	c.handlers = append(c.handlers, handler)
	return c
}

// WithEnv adds environment entries to every launched node process.
func (c *Controller) WithEnv(env ...string) *Controller {
	c.env = append(c.env, env...)
	return c
}

// Open reopens the run recorded in the data directory and reattaches to its node processes. The run
// directory stays locked until Close. storage.ErrNotFound is returned if no run is recorded.
func (c *Controller) Open() error {
	if err := c.lock(); err != nil {
		return err
	}
	if err := c.load(true); err != nil {
		c.unlock()
		return err
	}
	return nil
}

// OpenReadOnly loads the recorded run without locking it or touching its processes. Only Status and
// DumpLogs may be used afterwards.
func (c *Controller) OpenReadOnly() error {
	c.readOnly = true
	return c.load(false)
}

// Close releases the run directory. Node processes keep running.
func (c *Controller) Close() error {
	c.mu.RLock()
	aggregator := c.logs
	c.mu.RUnlock()

	if aggregator != nil && !c.readOnly {
		if err := aggregator.FlushAll(); err != nil {
			c.log.Warn().Err(err).Msg("could not flush node logs")
		}
	}
	c.unlock()
	return nil
}

func (c *Controller) lock() error {
	if c.locked {
		return nil
	}
	if err := c.store.Lock(); err != nil {
		return fmt.Errorf("%w: %v", localnet.ErrInvalidParams, err)
	}
	c.locked = true
	return nil
}

func (c *Controller) unlock() {
	if !c.locked {
		return
	}
	if err := c.store.Unlock(); err != nil {
		c.log.Warn().Err(err).Msg("could not release run lock")
	}
	c.locked = false
}

func (c *Controller) load(reattach bool) error {
	record, err := c.store.Load()
	if err != nil {
		return err
	}
	if record.Topology == nil {
		return fmt.Errorf("run %s has no topology: %w", record.RunID, storage.ErrDataMismatch)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.runID = record.RunID
	c.state = record.State
	c.failure = record.Error
	c.topology = record.Topology
	c.logs = logs.NewAggregator(c.log, record.RunID, c.store.Dir())
	c.procs = process.NewManager(c.log, c.cfg, record.Topology.Genesis, c.logs).WithEnv(c.env...)
	c.nodes = make(map[localnet.NodeID]*process.RunningNode)
	c.launched = nil
	c.recorded = make(map[localnet.NodeID]runstate.NodeRecord, len(record.Nodes))
	if !reattach {
		for _, n := range record.Nodes {
			c.recorded[n.ID] = n
		}
		return nil
	}

	for _, n := range record.Nodes {
		spec, ok := record.Topology.Node(n.ID)
		if !ok {
			return fmt.Errorf("recorded node %s is not part of the topology: %w", n.ID, storage.ErrDataMismatch)
		}
		node := c.procs.Reattach(spec, n.PID, n.CreateTime, n.State)
		c.nodes[n.ID] = node
		c.launched = append(c.launched, node)
	}
	c.log.Info().
		Str("run_id", record.RunID).
		Str("state", string(record.State)).
		Int("nodes", len(record.Nodes)).
		Msg("run reopened")
	return nil
}

// RunID is the id of the current run, empty before Start or Open.
func (c *Controller) RunID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runID
}

// State is the current run state.
func (c *Controller) State() localnet.RunState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Topology is the planned topology of the current run, nil before planning completed.
func (c *Controller) Topology() *localnet.Topology {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topology
}

// RunDir is the directory holding every artifact of the run.
func (c *Controller) RunDir() string {
	return c.store.Dir()
}

// transition moves the run to the given state, persists the run record and emits a run-state event.
func (c *Controller) transition(to localnet.RunState) error {
	c.mu.Lock()
	from := c.state
	if err := localnet.ValidateRunTransition(from, to); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = to
	c.mu.Unlock()

	c.log.Info().Str("from", string(from)).Str("to", string(to)).Msg("run state changed")
	c.emit(localnet.Event{Kind: localnet.EventRunState, State: to})

	if to == localnet.RunIdle {
		return nil
	}
	return c.save()
}

// fail moves the run to Failed and records the cause.
func (c *Controller) fail(cause error) {
	c.mu.Lock()
	c.failure = cause.Error()
	c.mu.Unlock()

	if err := c.transition(localnet.RunFailed); err != nil {
		c.log.Error().Err(err).Msg("could not record run failure")
	}
}

func (c *Controller) track(node *process.RunningNode) {
	c.mu.Lock()
	c.nodes[node.ID()] = node
	c.launched = append(c.launched, node)
	c.mu.Unlock()

	if err := c.save(); err != nil {
		c.log.Error().Err(err).Str("node", node.ID().String()).Msg("could not record launched node")
	}
}

func (c *Controller) node(id localnet.NodeID) (*process.RunningNode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	node, ok := c.nodes[id]
	return node, ok
}

func (c *Controller) save() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	record := &runstate.Record{
		RunID:    c.runID,
		State:    c.state,
		Topology: c.topology,
		Error:    c.failure,
		Nodes:    make([]runstate.NodeRecord, 0, len(c.launched)),
	}
	for _, node := range c.launched {
		spec := node.Spec()
		record.Nodes = append(record.Nodes, runstate.NodeRecord{
			ID:         spec.ID,
			Role:       spec.Role,
			PID:        node.PID(),
			CreateTime: node.CreateTime(),
			State:      node.State(),
			Log:        node.LogPath(),
		})
	}
	c.mu.RUnlock()

	return c.store.Save(record)
}

func (c *Controller) emit(event localnet.Event) {
	if event.RunID == "" {
		event.RunID = c.RunID()
	}
	event.Time = c.now()
	for _, handler := range c.handlers {
		handler(event)
	}
}

func (c *Controller) emitNode(kind localnet.EventKind, spec localnet.NodeSpec, detail string, took time.Duration) {
	c.emit(localnet.Event{
		Kind:     kind,
		Node:     spec.ID,
		Role:     spec.Role,
		Detail:   detail,
		Duration: took,
	})
}

func (c *Controller) mutable() error {
	if c.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (c *Controller) promTargetsPath() string {
	return filepath.Join(c.store.Dir(), localnet.FilenamePromTarget)
}
