package runstate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/storage"
	ioutils "github.com/onflow/localnet/utils/io"
	"github.com/onflow/localnet/utils/unittest"
)

func TestStore_SaveLoad(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		store := NewStore(dir)

		assert.False(t, store.Exists())
		_, err := store.Load()
		require.ErrorIs(t, err, storage.ErrNotFound)

		created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		record := &Record{
			RunID: "run-1",
			State: localnet.RunRunning,
			Topology: &localnet.Topology{
				RunID:     "run-1",
				Mode:      localnet.ModeBlinded,
				Host:      "127.0.0.1",
				CreatedAt: created,
				Genesis: localnet.GenesisSpec{
					NetworkID: 1337,
					Time:      created.Add(20 * time.Second),
					Delay:     20 * time.Second,
				},
				Nodes: []localnet.NodeSpec{
					{ID: "relay-0", Role: localnet.RoleBuilderRelay, Ports: localnet.Ports{RPC: 32001}},
					{
						ID:        "consensus-0",
						Role:      localnet.RoleConsensus,
						Ports:     localnet.Ports{P2P: 31000, RPC: 31001},
						DependsOn: []localnet.Dependency{{Node: "relay-0", Kind: localnet.DependencyBuilder}},
					},
				},
			},
			Nodes: []NodeRecord{
				{ID: "relay-0", Role: localnet.RoleBuilderRelay, PID: 42, CreateTime: 1700000000000, State: localnet.HealthHealthy},
			},
		}
		require.NoError(t, store.Save(record))
		assert.False(t, record.UpdatedAt.IsZero())
		assert.True(t, store.Exists())

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, record.RunID, loaded.RunID)
		assert.Equal(t, localnet.RunRunning, loaded.State)
		assert.Equal(t, localnet.ModeBlinded, loaded.Topology.Mode)
		assert.True(t, created.Equal(loaded.Topology.CreatedAt))
		assert.Equal(t, 20*time.Second, loaded.Topology.Genesis.Delay)
		assert.Equal(t, record.Topology.Nodes, loaded.Topology.Nodes)

		require.Len(t, loaded.Nodes, 1)
		assert.Equal(t, record.Nodes[0], loaded.Nodes[0])
	})
}

func TestStore_Lock(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		first := NewStore(dir)
		second := NewStore(dir)

		require.NoError(t, first.Lock())
		require.Error(t, second.Lock())
		require.NoError(t, first.Unlock())
		require.NoError(t, second.Lock())
		require.NoError(t, second.Unlock())
	})
}

func TestStore_ClearRemove(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		runDir := filepath.Join(dir, "run")
		store := NewStore(runDir)
		require.NoError(t, store.Lock())

		require.NoError(t, store.Save(&Record{RunID: "run-1", State: localnet.RunStopped}))
		require.NoError(t, os.MkdirAll(filepath.Join(runDir, localnet.DirnameNodes, "execution-0"), 0755))

		require.NoError(t, store.Clear())
		entries, err := os.ReadDir(runDir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, ioutils.FilenameLock, entries[0].Name())
		// clearing twice is fine
		require.NoError(t, store.Clear())

		require.NoError(t, store.Unlock())
		require.NoError(t, store.Remove())
		assert.NoDirExists(t, runDir)
		require.NoError(t, store.Remove())
		require.NoError(t, NewStore(runDir).Clear())
	})
}

// TestStore_ClearContinues checks a failed removal does not keep Clear from removing the other artifacts.
func TestStore_ClearContinues(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		store := NewStore(dir)
		require.NoError(t, store.Save(&Record{RunID: "run-1", State: localnet.RunStopped}))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, localnet.DirnameNodes, "execution-0"), 0755))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0755))

		removeAll = func(path string) error {
			if filepath.Base(path) == localnet.DirnameNodes {
				return errors.New("device busy")
			}
			return os.RemoveAll(path)
		}
		t.Cleanup(func() { removeAll = os.RemoveAll })

		err := store.Clear()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device busy")
		assert.Contains(t, err.Error(), localnet.DirnameNodes)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, localnet.DirnameNodes, entries[0].Name())
		assert.False(t, store.Exists())
	})
}
