package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/storage"
	"github.com/onflow/localnet/utils/unittest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlan(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		out, err := execute(t, "plan", "--datadir", dir, "--log-level", "error",
			"--blinded", "--execution-nodes", "2", "--consensus-nodes", "2")
		require.NoError(t, err)

		var topo localnet.Topology
		require.NoError(t, yaml.Unmarshal([]byte(out), &topo))
		assert.Equal(t, localnet.ModeBlinded, topo.Mode)
		require.Len(t, topo.Nodes, 5)
		assert.Equal(t, localnet.NodeID("relay-0"), topo.Nodes[0].ID)
		require.NoError(t, topo.Validate())

		// planning is a dry run
		assert.NoDirExists(t, filepath.Join(dir, localnet.DirnameGenesis))
	})
}

func TestGenesis(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		out, err := execute(t, "genesis", "--datadir", dir, "--log-level", "error", "--validators", "2")
		require.NoError(t, err)

		var spec localnet.GenesisSpec
		require.NoError(t, yaml.Unmarshal([]byte(out), &spec))
		assert.Equal(t, 2, spec.ValidatorCount)
		assert.FileExists(t, filepath.Join(dir, localnet.PathExecutionGenesis))
		assert.FileExists(t, filepath.Join(dir, localnet.PathJWTSecret))
	})
}

func TestNoRun(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		_, err := execute(t, "stop", "--datadir", dir, "--log-level", "error")
		require.NoError(t, err)

		_, err = execute(t, "status", "--datadir", dir, "--log-level", "error")
		require.True(t, storage.IsNotFound(err))

		_, err = execute(t, "clean", "--datadir", dir, "--log-level", "error")
		require.NoError(t, err)
		assert.NoDirExists(t, dir)
	})
}

func TestInvalidConfig(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		_, err := execute(t, "plan", "--datadir", dir, "--log-level", "loud")
		require.ErrorIs(t, err, localnet.ErrInvalidParams)
	})
}

func TestPrintError(t *testing.T) {
	spec := localnet.NodeSpec{ID: "consensus-0", Role: localnet.RoleConsensus}
	err := &localnet.StartError{
		Node:    spec.ID,
		Cause:   localnet.TimedOut("no answer").Err(spec),
		LogTail: []string{"starting", "listening"},
	}

	var out bytes.Buffer
	printError(&out, err)
	assert.Contains(t, out.String(), "start failed at node consensus-0")
	assert.Contains(t, out.String(), "role:    consensus")
	assert.Contains(t, out.String(), "last 2 log lines of consensus-0")
	assert.Contains(t, out.String(), "    listening")
}
