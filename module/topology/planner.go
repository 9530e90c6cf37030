// Package topology plans the nodes of a local network: their roles, ports, data directories and the
// dependency graph they are launched in.
package topology

import (
	"path/filepath"
	"time"

	"github.com/onflow/localnet/model/localnet"
)

// offsets of each port within the range of one node
const (
	offsetP2P     = 0
	offsetRPC     = 1
	offsetMetrics = 2
	offsetEngine  = 3

	// PortsPerNode is the smallest node stride that keeps the port ranges of two nodes apart.
	PortsPerNode = 4
)

// Counts is the number of nodes per role.
type Counts struct {
	Execution int
	Consensus int
	// Relays is only used in blinded mode.
	Relays int
}

// PortLayout places node i of the role at index r at Base + r*RoleStride + i*NodeStride.
type PortLayout struct {
	Base       int
	RoleStride int
	NodeStride int
}

// Planner is the NetworkTopology.
type Planner struct {
	host   string
	layout PortLayout
	now    func() time.Time
}

func NewPlanner(host string, layout PortLayout) *Planner {
	return &Planner{
		host:   host,
		layout: layout,
		now:    time.Now,
	}
}

// WithClock replaces the clock the topology creation time is taken from.
func (p *Planner) WithClock(now func() time.Time) *Planner {
	p.now = now
	return p
}

// Plan builds and validates the topology of a run. Relays come first, then execution nodes, then
// consensus nodes. Each consensus node depends on the execution node with the same ordinal and, in
// blinded mode, on relay (ordinal mod relays). Node i > 0 of the execution and consensus roles depends
// on node 0 of its role, which acts as boot node.
//
// Expected errors:
//   - localnet.ErrInvalidParams if the counts or the port layout are unusable
//   - localnet.ErrTopologyInvalid if the planned topology violates an invariant
func (p *Planner) Plan(runID string, mode localnet.Mode, counts Counts, genesis localnet.GenesisSpec, runDir string) (*localnet.Topology, error) {
	if mode == localnet.ModeStandard {
		counts.Relays = 0
	}
	if err := p.validate(mode, counts); err != nil {
		return nil, err
	}

	topo := &localnet.Topology{
		RunID:     runID,
		Mode:      mode,
		Host:      p.host,
		CreatedAt: p.now().Round(0),
		Genesis:   genesis,
	}

	for i := 0; i < counts.Relays; i++ {
		topo.Nodes = append(topo.Nodes, p.node(localnet.RoleBuilderRelay, i, runDir))
	}
	for i := 0; i < counts.Execution; i++ {
		node := p.node(localnet.RoleExecution, i, runDir)
		if i > 0 {
			node.DependsOn = append(node.DependsOn, bootnode(localnet.RoleExecution))
		}
		topo.Nodes = append(topo.Nodes, node)
	}
	for i := 0; i < counts.Consensus; i++ {
		node := p.node(localnet.RoleConsensus, i, runDir)
		node.DependsOn = append(node.DependsOn, localnet.Dependency{
			Node: localnet.NewNodeID(localnet.RoleExecution, i),
			Kind: localnet.DependencyEngine,
		})
		if counts.Relays > 0 {
			node.DependsOn = append(node.DependsOn, localnet.Dependency{
				Node: localnet.NewNodeID(localnet.RoleBuilderRelay, i%counts.Relays),
				Kind: localnet.DependencyBuilder,
			})
		}
		if i > 0 {
			node.DependsOn = append(node.DependsOn, bootnode(localnet.RoleConsensus))
		}
		topo.Nodes = append(topo.Nodes, node)
	}

	if err := topo.Validate(); err != nil {
		return nil, err
	}
	return topo, nil
}

func (p *Planner) node(role localnet.Role, ordinal int, runDir string) localnet.NodeSpec {
	id := localnet.NewNodeID(role, ordinal)
	return localnet.NodeSpec{
		ID:      id,
		Role:    role,
		Ordinal: ordinal,
		Ports:   p.ports(role, ordinal),
		DataDir: filepath.Join(runDir, localnet.DirnameNodes, id.String()),
	}
}

func (p *Planner) ports(role localnet.Role, ordinal int) localnet.Ports {
	start := p.layout.Base + role.Index()*p.layout.RoleStride + ordinal*p.layout.NodeStride

	ports := localnet.Ports{
		RPC:     start + offsetRPC,
		Metrics: start + offsetMetrics,
	}
	switch role {
	case localnet.RoleExecution:
		ports.P2P = start + offsetP2P
		ports.Engine = start + offsetEngine
	case localnet.RoleConsensus:
		ports.P2P = start + offsetP2P
	}
	return ports
}

func (p *Planner) validate(mode localnet.Mode, counts Counts) error {
	if counts.Execution < 1 {
		return localnet.NewInvalidParamsErrorf("at least one execution node is required, got %d", counts.Execution)
	}
	if counts.Consensus != counts.Execution {
		return localnet.NewInvalidParamsErrorf("every consensus node needs a paired execution node (%d consensus, %d execution)",
			counts.Consensus, counts.Execution)
	}
	if mode == localnet.ModeBlinded && counts.Relays < 1 {
		return localnet.NewInvalidParamsErrorf("blinded mode needs at least one builder relay, got %d", counts.Relays)
	}

	if p.layout.NodeStride < PortsPerNode {
		return localnet.NewInvalidParamsErrorf("node stride %d is below %d", p.layout.NodeStride, PortsPerNode)
	}
	largest := max(counts.Execution, counts.Consensus, counts.Relays)
	if largest*p.layout.NodeStride > p.layout.RoleStride {
		return localnet.NewInvalidParamsErrorf("role stride %d cannot hold %d nodes at node stride %d",
			p.layout.RoleStride, largest, p.layout.NodeStride)
	}
	if p.layout.Base < 1 {
		return localnet.NewInvalidParamsErrorf("base port must be positive, got %d", p.layout.Base)
	}
	last := len(localnet.Roles()) - 1
	if top := p.layout.Base + last*p.layout.RoleStride + largest*p.layout.NodeStride; top > 65535 {
		return localnet.NewInvalidParamsErrorf("port layout exceeds the port range (top port %d)", top)
	}
	return nil
}

func bootnode(role localnet.Role) localnet.Dependency {
	return localnet.Dependency{
		Node: localnet.NewNodeID(role, 0),
		Kind: localnet.DependencyBootnode,
	}
}
