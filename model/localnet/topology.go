package localnet

import (
	"time"
)

// Topology is the full, ordered collection of node specs for one run. It is the single source of truth
// for addressing.
type Topology struct {
	RunID     string      `yaml:"run_id" json:"run_id"`
	Mode      Mode        `yaml:"mode" json:"mode"`
	Host      string      `yaml:"host" json:"host"`
	CreatedAt time.Time   `yaml:"created_at" json:"created_at"`
	Genesis   GenesisSpec `yaml:"genesis" json:"genesis"`
	Nodes     []NodeSpec  `yaml:"nodes" json:"nodes"`
}

// Node returns the spec of the node with the given ID.
func (t *Topology) Node(id NodeID) (NodeSpec, bool) {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeSpec{}, false
}

// NodesByRole returns the nodes with the given role, in topology order.
func (t *Topology) NodesByRole(role Role) []NodeSpec {
	var nodes []NodeSpec
	for _, n := range t.Nodes {
		if n.Role == role {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Dependents returns the IDs of nodes that directly depend on the given node.
func (t *Topology) Dependents(id NodeID) []NodeID {
	var dependents []NodeID
	for _, n := range t.Nodes {
		for _, dep := range n.DependsOn {
			if dep.Node == id {
				dependents = append(dependents, n.ID)
				break
			}
		}
	}
	return dependents
}

// Endpoint returns the static addresses of the given node.
func (t *Topology) Endpoint(id NodeID) (*Endpoint, bool) {
	spec, ok := t.Node(id)
	if !ok {
		return nil, false
	}
	return NewEndpoint(t.Host, spec), true
}

// Validate checks the topology invariants:
//   - node IDs are unique
//   - no two nodes share a port
//   - every dependency resolves to a node of this topology, and the dependency graph is acyclic
//   - the genesis time lies after the topology creation time, at least the configured delay after its anchor
//
// All violations are reported as ErrTopologyInvalid.
func (t *Topology) Validate() error {
	if len(t.Nodes) == 0 {
		return NewTopologyInvalidErrorf("topology has no nodes")
	}

	ids := make(map[NodeID]struct{}, len(t.Nodes))
	owners := make(map[int]NodeID)
	for _, n := range t.Nodes {
		if !n.Role.Valid() {
			return NewTopologyInvalidErrorf("node %s has invalid role %d", n.ID, n.Role)
		}
		if _, dup := ids[n.ID]; dup {
			return NewTopologyInvalidErrorf("duplicate node id %s", n.ID)
		}
		ids[n.ID] = struct{}{}

		for name, port := range n.Ports.All() {
			if port < 1 || port > 65535 {
				return NewTopologyInvalidErrorf("node %s: %s port %d out of range", n.ID, name, port)
			}
			if owner, taken := owners[port]; taken {
				return NewTopologyInvalidErrorf("port %d assigned to both %s and %s", port, owner, n.ID)
			}
			owners[port] = n.ID
		}
	}

	for _, n := range t.Nodes {
		for _, dep := range n.DependsOn {
			if dep.Node == n.ID {
				return NewTopologyInvalidErrorf("node %s depends on itself", n.ID)
			}
			if _, ok := ids[dep.Node]; !ok {
				return NewTopologyInvalidErrorf("node %s depends on unknown node %s", n.ID, dep.Node)
			}
		}
	}

	if _, err := t.LaunchLayers(); err != nil {
		return err
	}

	if !t.Genesis.Time.After(t.CreatedAt) {
		return NewTopologyInvalidErrorf("genesis time %s is not after topology creation %s",
			t.Genesis.Time.Format(time.RFC3339), t.CreatedAt.Format(time.RFC3339))
	}
	if t.Genesis.Time.Sub(t.Genesis.AnchoredAt) < t.Genesis.Delay {
		return NewTopologyInvalidErrorf("genesis time is less than %s after its anchor", t.Genesis.Delay)
	}

	relays := len(t.NodesByRole(RoleBuilderRelay))
	if t.Mode == ModeBlinded && relays == 0 {
		return NewTopologyInvalidErrorf("blinded mode requires at least one builder relay")
	}
	if t.Mode == ModeStandard && relays != 0 {
		return NewTopologyInvalidErrorf("standard mode must not contain builder relays")
	}

	return nil
}

// LaunchLayers groups the nodes into dependency layers: every node's dependencies lie in earlier layers.
// Nodes within a layer keep their topology order. An error is returned if the graph has a cycle.
func (t *Topology) LaunchLayers() ([][]NodeSpec, error) {
	remaining := make(map[NodeID]int, len(t.Nodes))
	for _, n := range t.Nodes {
		unique := make(map[NodeID]struct{}, len(n.DependsOn))
		for _, dep := range n.DependsOn {
			unique[dep.Node] = struct{}{}
		}
		remaining[n.ID] = len(unique)
	}

	var layers [][]NodeSpec
	placed := 0
	for placed < len(t.Nodes) {
		var layer []NodeSpec
		for _, n := range t.Nodes {
			if unmet, ok := remaining[n.ID]; ok && unmet == 0 {
				layer = append(layer, n)
			}
		}
		if len(layer) == 0 {
			return nil, NewTopologyInvalidErrorf("dependency cycle among %d nodes", len(t.Nodes)-placed)
		}
		for _, n := range layer {
			delete(remaining, n.ID)
			for _, dependent := range t.Dependents(n.ID) {
				if _, ok := remaining[dependent]; ok {
					remaining[dependent]--
				}
			}
		}
		placed += len(layer)
		layers = append(layers, layer)
	}
	return layers, nil
}

// StopLayers returns the launch layers in reverse, so dependents stop before their dependencies.
func (t *Topology) StopLayers() ([][]NodeSpec, error) {
	layers, err := t.LaunchLayers()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(layers)-1; i < j; i, j = i+1, j-1 {
		layers[i], layers[j] = layers[j], layers[i]
	}
	return layers, nil
}
