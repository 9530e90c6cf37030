package localnet_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/localnet/model/localnet"
)

func node(role localnet.Role, ordinal int, base int, deps ...localnet.Dependency) localnet.NodeSpec {
	return localnet.NodeSpec{
		ID:        localnet.NewNodeID(role, ordinal),
		Role:      role,
		Ordinal:   ordinal,
		Ports:     localnet.Ports{P2P: base, RPC: base + 1, Metrics: base + 2},
		DependsOn: deps,
	}
}

func dep(id localnet.NodeID, kind localnet.DependencyKind) localnet.Dependency {
	return localnet.Dependency{Node: id, Kind: kind}
}

func blindedTopology() *localnet.Topology {
	now := time.Now()
	relay := node(localnet.RoleBuilderRelay, 0, 32000)
	el := node(localnet.RoleExecution, 0, 30000)
	cl := node(localnet.RoleConsensus, 0, 31000,
		dep(el.ID, localnet.DependencyEngine),
		dep(relay.ID, localnet.DependencyBuilder),
	)
	return &localnet.Topology{
		Mode:      localnet.ModeBlinded,
		Host:      "127.0.0.1",
		CreatedAt: now,
		Genesis: localnet.GenesisSpec{
			AnchoredAt: now,
			Delay:      10 * time.Second,
			Time:       now.Add(10 * time.Second),
		},
		Nodes: []localnet.NodeSpec{relay, el, cl},
	}
}

func TestTopology_LaunchLayers(t *testing.T) {
	topo := blindedTopology()
	require.NoError(t, topo.Validate())

	layers, err := topo.LaunchLayers()
	require.NoError(t, err)
	require.Len(t, layers, 2)

	// relay and execution have no dependencies, relay keeps its leading topology position
	require.Len(t, layers[0], 2)
	assert.Equal(t, localnet.NodeID("relay-0"), layers[0][0].ID)
	assert.Equal(t, localnet.NodeID("execution-0"), layers[0][1].ID)
	require.Len(t, layers[1], 1)
	assert.Equal(t, localnet.NodeID("consensus-0"), layers[1][0].ID)

	stop, err := topo.StopLayers()
	require.NoError(t, err)
	assert.Equal(t, localnet.NodeID("consensus-0"), stop[0][0].ID)
	assert.Len(t, stop[1], 2)
}

func TestTopology_Validate(t *testing.T) {
	t.Run("shared port", func(t *testing.T) {
		topo := blindedTopology()
		topo.Nodes[1].Ports.Metrics = topo.Nodes[0].Ports.RPC
		err := topo.Validate()
		require.ErrorIs(t, err, localnet.ErrTopologyInvalid)
		assert.Contains(t, err.Error(), "port")
	})

	t.Run("dangling dependency", func(t *testing.T) {
		topo := blindedTopology()
		topo.Nodes[2].DependsOn = append(topo.Nodes[2].DependsOn, dep("execution-7", localnet.DependencyBootnode))
		require.ErrorIs(t, topo.Validate(), localnet.ErrTopologyInvalid)
	})

	t.Run("cycle", func(t *testing.T) {
		topo := blindedTopology()
		topo.Nodes[1].DependsOn = []localnet.Dependency{dep("consensus-0", localnet.DependencyBootnode)}
		err := topo.Validate()
		require.ErrorIs(t, err, localnet.ErrTopologyInvalid)
		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("self dependency", func(t *testing.T) {
		topo := blindedTopology()
		topo.Nodes[0].DependsOn = []localnet.Dependency{dep("relay-0", localnet.DependencyBootnode)}
		require.ErrorIs(t, topo.Validate(), localnet.ErrTopologyInvalid)
	})

	t.Run("genesis in the past", func(t *testing.T) {
		topo := blindedTopology()
		topo.Genesis.Time = topo.CreatedAt.Add(-time.Second)
		require.ErrorIs(t, topo.Validate(), localnet.ErrTopologyInvalid)
	})

	t.Run("genesis closer than delay", func(t *testing.T) {
		topo := blindedTopology()
		topo.Genesis.Time = topo.Genesis.AnchoredAt.Add(time.Second)
		require.ErrorIs(t, topo.Validate(), localnet.ErrTopologyInvalid)
	})

	t.Run("standard mode with relay", func(t *testing.T) {
		topo := blindedTopology()
		topo.Mode = localnet.ModeStandard
		require.ErrorIs(t, topo.Validate(), localnet.ErrTopologyInvalid)
	})

	t.Run("duplicate edge", func(t *testing.T) {
		topo := blindedTopology()
		topo.Nodes[2].DependsOn = append(topo.Nodes[2].DependsOn, dep("execution-0", localnet.DependencyBootnode))
		require.NoError(t, topo.Validate())
	})
}

func TestTopology_Dependents(t *testing.T) {
	topo := blindedTopology()
	assert.Equal(t, []localnet.NodeID{"consensus-0"}, topo.Dependents("execution-0"))
	assert.Empty(t, topo.Dependents("consensus-0"))

	endpoint, ok := topo.Endpoint("execution-0")
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:30001", endpoint.RPCURL)
	assert.Equal(t, "127.0.0.1:30000", endpoint.P2PAddr)
	assert.Empty(t, endpoint.EngineURL)
}
