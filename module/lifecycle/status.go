package lifecycle

import (
	"fmt"

	"github.com/onflow/localnet/model/localnet"
)

// NodeStatus is the observed state of one node.
type NodeStatus struct {
	ID      localnet.NodeID      `json:"id" yaml:"id"`
	Role    localnet.Role        `json:"role" yaml:"role"`
	State   localnet.HealthState `json:"state" yaml:"state"`
	PID     int                  `json:"pid,omitempty" yaml:"pid,omitempty"`
	Ports   localnet.Ports       `json:"ports" yaml:"ports"`
	LogPath string               `json:"log,omitempty" yaml:"log,omitempty"`
}

// Status is a snapshot of the run.
type Status struct {
	RunID string            `json:"run_id" yaml:"run_id"`
	State localnet.RunState `json:"state" yaml:"state"`
	Mode  string            `json:"mode,omitempty" yaml:"mode,omitempty"`
	Error string            `json:"error,omitempty" yaml:"error,omitempty"`
	// Nodes lists every planned node in topology order. Nodes that were never launched are Starting
	// without a PID.
	Nodes []NodeStatus `json:"nodes" yaml:"nodes"`
}

// Status returns a snapshot of the run and its nodes.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := Status{
		RunID: c.runID,
		State: c.state,
		Error: c.failure,
		Nodes: []NodeStatus{},
	}
	if c.topology == nil {
		return status
	}

	status.Mode = c.topology.Mode.String()
	for _, spec := range c.topology.Nodes {
		ns := NodeStatus{
			ID:    spec.ID,
			Role:  spec.Role,
			State: localnet.HealthStarting,
			Ports: spec.Ports,
		}
		if node, ok := c.nodes[spec.ID]; ok {
			ns.State = node.State()
			ns.PID = node.PID()
		} else if record, ok := c.recorded[spec.ID]; ok {
			ns.State = record.State
			ns.PID = record.PID
		}
		if c.logs != nil {
			ns.LogPath = c.logs.Path(spec.ID)
		}
		status.Nodes = append(status.Nodes, ns)
	}
	return status
}

// DumpLogs returns the captured output of every node of the run, keyed by node. It may be called at any
// time after planning, including while nodes are running or after they stopped.
func (c *Controller) DumpLogs() (map[localnet.NodeID][]byte, error) {
	c.mu.RLock()
	aggregator, runID := c.logs, c.runID
	c.mu.RUnlock()

	if aggregator == nil {
		return nil, fmt.Errorf("run has no logs yet")
	}
	return aggregator.Dump(runID)
}

// TailLog returns the last n lines of the log of the given node.
func (c *Controller) TailLog(id localnet.NodeID, n int) ([]string, error) {
	c.mu.RLock()
	aggregator, topo := c.logs, c.topology
	c.mu.RUnlock()

	if aggregator == nil || topo == nil {
		return nil, fmt.Errorf("run has no logs yet")
	}
	if _, ok := topo.Node(id); !ok {
		return nil, fmt.Errorf("unknown node %s", id)
	}
	return aggregator.Tail(id, n)
}
