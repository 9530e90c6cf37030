package localnet

import (
	"fmt"
	"net"
	"strconv"
)

// NodeID identifies a node within one run, e.g. "consensus-0".
type NodeID string

// NewNodeID returns the identifier of the node with the given role and ordinal.
func NewNodeID(role Role, ordinal int) NodeID {
	return NodeID(fmt.Sprintf("%s-%d", role, ordinal))
}

func (id NodeID) String() string {
	return string(id)
}

// Ports is the listen port plan of a single node. A zero port is not used by the node.
type Ports struct {
	P2P     int `yaml:"p2p,omitempty" json:"p2p,omitempty"`
	RPC     int `yaml:"rpc,omitempty" json:"rpc,omitempty"`
	Metrics int `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	// Engine is the authenticated engine API port of execution nodes.
	Engine int `yaml:"engine,omitempty" json:"engine,omitempty"`
}

// All returns the non-zero ports keyed by their name.
func (p Ports) All() map[string]int {
	all := make(map[string]int, 4)
	for name, port := range map[string]int{
		"p2p":     p.P2P,
		"rpc":     p.RPC,
		"metrics": p.Metrics,
		"engine":  p.Engine,
	} {
		if port != 0 {
			all[name] = port
		}
	}
	return all
}

// DependencyKind describes why a node depends on another.
type DependencyKind string

const (
	// DependencyEngine links a consensus node to its paired execution node.
	DependencyEngine DependencyKind = "engine"
	// DependencyBuilder links a consensus node to the builder relay it proposes blinded blocks through.
	DependencyBuilder DependencyKind = "builder"
	// DependencyBootnode links a node to the boot node of its role.
	DependencyBootnode DependencyKind = "bootnode"
)

// Dependency is a directed edge: the owning node must be able to reach Node before it starts.
type Dependency struct {
	Node NodeID         `yaml:"node" json:"node"`
	Kind DependencyKind `yaml:"kind" json:"kind"`
}

// NodeSpec is one planned node instance.
type NodeSpec struct {
	ID        NodeID       `yaml:"id" json:"id"`
	Role      Role         `yaml:"role" json:"role"`
	Ordinal   int          `yaml:"ordinal" json:"ordinal"`
	Ports     Ports        `yaml:"ports" json:"ports"`
	DataDir   string       `yaml:"datadir" json:"datadir"`
	DependsOn []Dependency `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// DependencyIDs returns the IDs of all nodes this node depends on.
func (n NodeSpec) DependencyIDs() []NodeID {
	ids := make([]NodeID, 0, len(n.DependsOn))
	for _, dep := range n.DependsOn {
		ids = append(ids, dep.Node)
	}
	return ids
}

// Endpoint is the resolved address of a dependency, available once that dependency is Healthy.
type Endpoint struct {
	Node      NodeID
	Role      Role
	RPCURL    string
	EngineURL string
	P2PAddr   string
	// Identity is the discovered peer record of the node (enode or ENR), empty when not discovered.
	Identity string
}

// URL is an alias of RPCURL, used by argument templates for relays.
func (e *Endpoint) URL() string {
	return e.RPCURL
}

// NewEndpoint computes the static addresses of a node on the given host.
func NewEndpoint(host string, spec NodeSpec) *Endpoint {
	e := &Endpoint{
		Node: spec.ID,
		Role: spec.Role,
	}
	if spec.Ports.RPC != 0 {
		e.RPCURL = "http://" + net.JoinHostPort(host, strconv.Itoa(spec.Ports.RPC))
	}
	if spec.Ports.Engine != 0 {
		e.EngineURL = "http://" + net.JoinHostPort(host, strconv.Itoa(spec.Ports.Engine))
	}
	if spec.Ports.P2P != 0 {
		e.P2PAddr = net.JoinHostPort(host, strconv.Itoa(spec.Ports.P2P))
	}
	return e
}
