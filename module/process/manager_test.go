package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/localnet/config"
	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module/logs"
	"github.com/onflow/localnet/utils/unittest"
	"github.com/onflow/localnet/utils/unittest/fakenode"
)

func TestMain(m *testing.M) {
	fakenode.Main()
	os.Exit(m.Run())
}

const networkID = 1337

var fakeArgs = []string{
	"--host", "{{.Host}}",
	"--rpc-port", "{{.Node.Ports.RPC}}",
	"--chain-id", "{{.Genesis.NetworkID}}",
}

func fakeRole(probe config.Probe, discovery string, extra ...string) config.RoleConfig {
	return config.RoleConfig{
		Binary:    fakenode.Binary(),
		Args:      append(append([]string{}, fakeArgs...), extra...),
		Probe:     probe,
		Discovery: discovery,
	}
}

var (
	jsonrpcProbe = config.Probe{Kind: "jsonrpc"}
	httpProbe    = config.Probe{Kind: "http", Path: "/eth/v1/node/health", ExpectStatus: []int{200, 206}}
)

type env struct {
	dir     string
	manager *Manager
	logs    *logs.Aggregator
}

func setup(t *testing.T, roles config.RolesConfig) *env {
	dir := unittest.TempDir(t)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	cfg := config.Config{
		Host: "127.0.0.1",
		Health: config.HealthConfig{
			Interval:       50 * time.Millisecond,
			Timeout:        10 * time.Second,
			MaxRetries:     1000,
			RequestTimeout: 500 * time.Millisecond,
		},
		Stop:  config.StopConfig{Grace: 5 * time.Second},
		Roles: roles,
	}
	genesis := localnet.GenesisSpec{NetworkID: networkID}
	aggregator := logs.NewAggregator(unittest.Logger(), "run", dir)

	return &env{
		dir:     dir,
		manager: NewManager(unittest.Logger(), cfg, genesis, aggregator).WithEnv(fakenode.Env()...),
		logs:    aggregator,
	}
}

func (e *env) spec(t *testing.T, role localnet.Role) localnet.NodeSpec {
	id := localnet.NewNodeID(role, 0)
	return localnet.NodeSpec{
		ID:      id,
		Role:    role,
		Ports:   localnet.Ports{RPC: unittest.FreePort(t)},
		DataDir: filepath.Join(e.dir, localnet.DirnameNodes, id.String()),
	}
}

func (e *env) launch(t *testing.T, spec localnet.NodeSpec) *RunningNode {
	node, err := e.manager.Launch(context.Background(), spec, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = e.manager.Stop(node, 0)
	})
	return node
}

func TestLaunchHealthyStop(t *testing.T) {
	e := setup(t, config.RolesConfig{
		Execution: fakeRole(jsonrpcProbe, "enode", "--identity", "enode://fake@127.0.0.1:30303"),
	})
	node := e.launch(t, e.spec(t, localnet.RoleExecution))
	assert.Equal(t, localnet.HealthStarting, node.State())
	assert.NotZero(t, node.CreateTime())

	outcome := e.manager.WaitHealthy(context.Background(), node, 10*time.Second)
	require.True(t, outcome.Healthy(), outcome.String())
	assert.Equal(t, localnet.HealthHealthy, node.State())

	identity, err := e.manager.Identity(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, "enode://fake@127.0.0.1:30303", identity)

	result, err := e.manager.Stop(node, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, localnet.StopResultStopped, result)
	assert.Equal(t, localnet.HealthStopped, node.State())
	unittest.RequireProcessGone(t, node.PID(), 5*time.Second)

	// stopping again is a no-op
	result, err = e.manager.Stop(node, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, localnet.StopResultStopped, result)
	assert.Equal(t, localnet.HealthStopped, node.State())
}

func TestWaitHealthy_WrongChain(t *testing.T) {
	e := setup(t, config.RolesConfig{
		Execution: config.RoleConfig{
			Binary: fakenode.Binary(),
			Args:   []string{"--rpc-port", "{{.Node.Ports.RPC}}", "--chain-id", "1"},
			Probe:  jsonrpcProbe,
		},
	})
	node := e.launch(t, e.spec(t, localnet.RoleExecution))

	outcome := e.manager.WaitHealthy(context.Background(), node, time.Second)
	assert.Equal(t, localnet.OutcomeUnhealthy, outcome.Status)
	assert.Contains(t, outcome.Reason, "chain id")
	assert.Equal(t, localnet.HealthFailed, node.State())
}

func TestWaitHealthy_Unhealthy(t *testing.T) {
	e := setup(t, config.RolesConfig{
		Consensus: fakeRole(httpProbe, "enr", "--unhealthy"),
	})
	node := e.launch(t, e.spec(t, localnet.RoleConsensus))

	outcome := e.manager.WaitHealthy(context.Background(), node, 500*time.Millisecond)
	assert.Equal(t, localnet.OutcomeUnhealthy, outcome.Status)
	assert.Contains(t, outcome.Reason, "status 503")
	assert.Equal(t, localnet.HealthFailed, node.State())

	require.ErrorIs(t, outcome.Err(node.Spec()), localnet.ErrNodeUnhealthy)

	// a failed node is still stopped
	result, err := e.manager.Stop(node, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, localnet.StopResultStopped, result)
	assert.Equal(t, localnet.HealthFailed, node.State())
	unittest.RequireProcessGone(t, node.PID(), 5*time.Second)
}

func TestWaitHealthy_TimedOut(t *testing.T) {
	e := setup(t, config.RolesConfig{
		Relay: fakeRole(config.Probe{Kind: "http", Path: "/eth/v1/builder/status"}, "none", "--never-listen"),
	})
	node := e.launch(t, e.spec(t, localnet.RoleBuilderRelay))

	start := time.Now()
	outcome := e.manager.WaitHealthy(context.Background(), node, 500*time.Millisecond)
	assert.Equal(t, localnet.OutcomeTimedOut, outcome.Status)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, localnet.HealthFailed, node.State())
	require.ErrorIs(t, outcome.Err(node.Spec()), localnet.ErrNodeTimedOut)
}

func TestWaitHealthy_RetryBudget(t *testing.T) {
	e := setup(t, config.RolesConfig{
		Relay: fakeRole(config.Probe{Kind: "tcp"}, "none", "--never-listen"),
	})
	e.manager.cfg.Health.MaxRetries = 2

	node := e.launch(t, e.spec(t, localnet.RoleBuilderRelay))
	start := time.Now()
	outcome := e.manager.WaitHealthy(context.Background(), node, time.Minute)
	assert.Equal(t, localnet.OutcomeTimedOut, outcome.Status)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestWaitHealthy_ProcessExited(t *testing.T) {
	e := setup(t, config.RolesConfig{
		Execution: fakeRole(jsonrpcProbe, "enode", "--never-listen", "--exit-after", "200ms"),
	})
	node := e.launch(t, e.spec(t, localnet.RoleExecution))

	outcome := e.manager.WaitHealthy(context.Background(), node, 10*time.Second)
	assert.Equal(t, localnet.OutcomeUnhealthy, outcome.Status)
	assert.Contains(t, outcome.Reason, "process exited")
	assert.Contains(t, outcome.Reason, "exit status 3")
	assert.Equal(t, localnet.HealthFailed, node.State())

	result, err := e.manager.Stop(node, time.Second)
	require.NoError(t, err)
	assert.Equal(t, localnet.StopResultStopped, result)
}

func TestWaitHealthy_Cancelled(t *testing.T) {
	e := setup(t, config.RolesConfig{
		Execution: fakeRole(jsonrpcProbe, "enode", "--never-listen"),
	})
	node := e.launch(t, e.spec(t, localnet.RoleExecution))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	var outcome localnet.HealthOutcome
	unittest.RequireReturnsBefore(t, func() {
		outcome = e.manager.WaitHealthy(ctx, node, time.Minute)
	}, 5*time.Second, "wait was not cancelled")
	assert.Equal(t, localnet.OutcomeCancelled, outcome.Status)
	assert.Contains(t, outcome.String(), "cancelled")
	// a cancelled wait does not fail the node
	assert.Equal(t, localnet.HealthStarting, node.State())
	assert.NotErrorIs(t, outcome.Err(node.Spec()), localnet.ErrNodeTimedOut)

	result, err := e.manager.Stop(node, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, localnet.StopResultStopped, result)
	assert.Equal(t, localnet.HealthStopped, node.State())
}

func TestStop_ForceKill(t *testing.T) {
	e := setup(t, config.RolesConfig{
		Execution: fakeRole(jsonrpcProbe, "enode", "--ignore-sigterm"),
	})
	node := e.launch(t, e.spec(t, localnet.RoleExecution))
	require.True(t, e.manager.WaitHealthy(context.Background(), node, 10*time.Second).Healthy())

	result, err := e.manager.Stop(node, 200*time.Millisecond)
	require.ErrorIs(t, err, localnet.ErrStopFailed)
	assert.Equal(t, localnet.StopResultForceKilled, result)
	assert.Equal(t, localnet.HealthStopped, node.State())
	unittest.RequireProcessGone(t, node.PID(), 5*time.Second)

	// the second stop is a no-op and not an error
	result, err = e.manager.Stop(node, 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, localnet.StopResultForceKilled, result)
}

func TestLaunch_Init(t *testing.T) {
	role := fakeRole(jsonrpcProbe, "enode")
	role.Init = []string{"init", "--datadir", "{{.Node.DataDir}}"}
	e := setup(t, config.RolesConfig{Execution: role})

	spec := e.spec(t, localnet.RoleExecution)
	e.launch(t, spec)
	assert.FileExists(t, filepath.Join(spec.DataDir, "initialised"))
}

func TestLaunch_Failures(t *testing.T) {
	t.Run("init fails", func(t *testing.T) {
		role := fakeRole(jsonrpcProbe, "enode")
		role.Init = []string{"init", "--fail-init"}
		e := setup(t, config.RolesConfig{Execution: role})

		_, err := e.manager.Launch(context.Background(), e.spec(t, localnet.RoleExecution), nil)
		require.ErrorIs(t, err, localnet.ErrNodeLaunchFailed)
		assert.Contains(t, err.Error(), "init step failed")

		lines, err := e.logs.Tail("execution-0", 5)
		require.NoError(t, err)
		assert.Contains(t, lines, "init failed on request")
	})

	t.Run("missing binary", func(t *testing.T) {
		e := setup(t, config.RolesConfig{
			Execution: config.RoleConfig{Binary: "/does/not/exist", Probe: jsonrpcProbe},
		})
		_, err := e.manager.Launch(context.Background(), e.spec(t, localnet.RoleExecution), nil)
		require.ErrorIs(t, err, localnet.ErrNodeLaunchFailed)
		nodeErr, ok := localnet.IsNodeError(err)
		require.True(t, ok)
		assert.Equal(t, localnet.NodeID("execution-0"), nodeErr.Node)
	})

	t.Run("unresolved dependency", func(t *testing.T) {
		e := setup(t, config.RolesConfig{Consensus: fakeRole(httpProbe, "enr")})
		spec := e.spec(t, localnet.RoleConsensus)
		spec.DependsOn = []localnet.Dependency{{Node: "execution-0", Kind: localnet.DependencyEngine}}

		_, err := e.manager.Launch(context.Background(), spec, nil)
		require.ErrorIs(t, err, localnet.ErrNodeLaunchFailed)
	})
}

func TestLaunch_CapturesOutput(t *testing.T) {
	e := setup(t, config.RolesConfig{
		Execution: fakeRole(jsonrpcProbe, "enode", "--output", "hello"),
	})
	node := e.launch(t, e.spec(t, localnet.RoleExecution))
	require.True(t, e.manager.WaitHealthy(context.Background(), node, 10*time.Second).Healthy())
	_, err := e.manager.Stop(node, 5*time.Second)
	require.NoError(t, err)

	dump, err := e.logs.Dump("run")
	require.NoError(t, err)
	output := string(dump["execution-0"])
	assert.Contains(t, output, "stdout: hello")
	assert.Contains(t, output, "stderr: hello")
	assert.Contains(t, output, "shutdown complete")
}

func TestReattach(t *testing.T) {
	e := setup(t, config.RolesConfig{
		Execution: fakeRole(jsonrpcProbe, "enode"),
	})
	spec := e.spec(t, localnet.RoleExecution)
	launched := e.launch(t, spec)
	require.True(t, e.manager.WaitHealthy(context.Background(), launched, 10*time.Second).Healthy())

	t.Run("pid reused", func(t *testing.T) {
		node := e.manager.Reattach(spec, launched.PID(), launched.CreateTime()+1, localnet.HealthHealthy)
		unittest.RequireCloseBefore(t, node.Exited(), time.Second, "mismatching process adopted")

		// stopping it must not touch the running process
		_, err := e.manager.Stop(node, time.Second)
		require.NoError(t, err)
		unittest.RequireNotClosed(t, launched.Exited(), "launched process was signalled")
	})

	t.Run("adopted", func(t *testing.T) {
		node := e.manager.Reattach(spec, launched.PID(), launched.CreateTime(), localnet.HealthHealthy)
		assert.Equal(t, localnet.HealthHealthy, node.State())
		unittest.RequireNotClosed(t, node.Exited(), "running process not adopted")

		result, err := e.manager.Stop(node, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, localnet.StopResultStopped, result)
		unittest.RequireCloseBefore(t, launched.Exited(), 5*time.Second, "process did not stop")
	})

	t.Run("gone", func(t *testing.T) {
		node := e.manager.Reattach(spec, launched.PID(), launched.CreateTime(), localnet.HealthHealthy)
		unittest.RequireCloseBefore(t, node.Exited(), time.Second, "exited process adopted")
		result, err := e.manager.Stop(node, time.Second)
		require.NoError(t, err)
		assert.Equal(t, localnet.StopResultStopped, result)
	})
}
