// Package process launches, probes and stops the node processes of a run.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	gopsprocess "github.com/shirou/gopsutil/v3/process"

	"github.com/onflow/localnet/config"
	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module/health"
	"github.com/onflow/localnet/module/logs"
	"github.com/onflow/localnet/module/util"
	"github.com/onflow/localnet/utils/logging"
)

// killWait bounds how long Stop waits for a process to disappear after SIGKILL.
const killWait = 5 * time.Second

// Manager is the NodeProcessManager of one run.
type Manager struct {
	log     zerolog.Logger
	cfg     config.Config
	genesis localnet.GenesisSpec
	logs    *logs.Aggregator
	// env is appended to the environment of every node process, after the role env.
	env []string
}

func NewManager(log zerolog.Logger, cfg config.Config, genesis localnet.GenesisSpec, aggregator *logs.Aggregator) *Manager {
	return &Manager{
		log:     log.With().Str("component", "process").Logger(),
		cfg:     cfg,
		genesis: genesis,
		logs:    aggregator,
	}
}

// WithEnv adds environment entries to every launched process.
func (m *Manager) WithEnv(env ...string) *Manager {
	m.env = append(m.env, env...)
	return m
}

// Launch runs the init step of the node's role, if any, then starts the node process. The process is
// detached from the caller: it keeps running when ctx is cancelled and when the orchestrator exits.
// resolved must contain the endpoints of all dependencies of spec.
//
// All errors are node errors of kind localnet.ErrNodeLaunchFailed.
func (m *Manager) Launch(ctx context.Context, spec localnet.NodeSpec, resolved map[localnet.NodeID]*localnet.Endpoint) (*RunningNode, error) {
	log := logging.Node(m.log, spec)
	fail := func(err error) (*RunningNode, error) {
		return nil, localnet.NewNodeError(spec, localnet.ErrNodeLaunchFailed, "", err)
	}

	role := m.cfg.Roles.ForRole(spec.Role)
	data, err := NewTemplateData(m.cfg.Host, spec, m.genesis, resolved)
	if err != nil {
		return fail(err)
	}
	args, err := Render(role.Args, data)
	if err != nil {
		return fail(err)
	}
	env, err := Render(role.Env, data)
	if err != nil {
		return fail(err)
	}
	env = append(append(os.Environ(), env...), m.env...)

	if err := os.MkdirAll(spec.DataDir, 0755); err != nil {
		return fail(fmt.Errorf("could not create data dir: %w", err))
	}
	handle, err := m.logs.Attach(spec)
	if err != nil {
		return fail(err)
	}

	if len(role.Init) > 0 {
		initArgs, err := Render(role.Init, data)
		if err != nil {
			_ = handle.Flush()
			return fail(err)
		}
		log.Debug().Strs("args", initArgs).Msg("running init step")

		cmd := exec.CommandContext(ctx, role.Binary, initArgs...)
		cmd.Stdout = handle.Writer()
		cmd.Stderr = handle.Writer()
		cmd.Env = env
		cmd.Dir = spec.DataDir
		if err := cmd.Run(); err != nil {
			_ = handle.Flush()
			return fail(fmt.Errorf("init step failed: %w", err))
		}
	}

	cmd := exec.Command(role.Binary, args...)
	cmd.Stdout = handle.Writer()
	cmd.Stderr = handle.Writer()
	cmd.Env = env
	cmd.Dir = spec.DataDir
	configure(cmd)

	log.Debug().Str("binary", role.Binary).Strs("args", args).Msg("launching node")
	if err := cmd.Start(); err != nil {
		_ = handle.Flush()
		return fail(fmt.Errorf("could not start %s: %w", role.Binary, err))
	}

	pid := cmd.Process.Pid
	createTime, err := processCreateTime(pid)
	if err != nil {
		log.Warn().Err(err).Int("pid", pid).Msg("could not read process create time")
	}

	node := newRunningNode(log.With().Int("pid", pid).Logger(), spec, pid, createTime, handle)
	go func() {
		node.exit(cmd.Wait())
	}()

	node.log.Info().Str("log", handle.Path).Msg("node launched")
	return node, nil
}

// WaitHealthy polls the node's readiness probe until it reports healthy, the retry budget or timeout is
// exhausted, or the process exits. A node that does not become healthy is Failed.
//
//   - Healthy once the probe succeeded
//   - Unhealthy if the process exited, or the last probe was answered negatively
//   - TimedOut if no probe attempt got an answer
//   - Cancelled if ctx was cancelled first; the node is left Starting
func (m *Manager) WaitHealthy(ctx context.Context, node *RunningNode, timeout time.Duration) localnet.HealthOutcome {
	spec := node.Spec()
	role := m.cfg.Roles.ForRole(spec.Role)

	probe, err := health.NewProbe(role.Probe, localnet.NewEndpoint(m.cfg.Host, spec), m.genesis.NetworkID, m.cfg.Health.RequestTimeout)
	if err != nil {
		node.MarkFailed()
		return localnet.Unhealthy(err.Error())
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	go func() {
		select {
		case <-node.Exited():
			cancel()
		case <-waitCtx.Done():
		}
	}()

	backoff := retry.NewConstant(m.cfg.Health.Interval)
	backoff = retry.WithMaxRetries(m.cfg.Health.MaxRetries, backoff)

	var last health.Result
	attempts := 0
	err = retry.Do(waitCtx, backoff, func(ctx context.Context) error {
		attempts++
		last = probe.Check(ctx)
		if last.Healthy {
			return nil
		}
		node.log.Debug().Int("attempt", attempts).Str("result", last.String()).Msg("node not healthy yet")
		return retry.RetryableError(errors.New(last.String()))
	})

	outcome := m.classify(ctx, node, err, last, timeout)
	if outcome.Healthy() {
		if err := node.transition(localnet.HealthHealthy); err != nil {
			// the process exited right after answering
			return localnet.Unhealthy(err.Error())
		}
		node.log.Info().Int("attempts", attempts).Msg("node healthy")
		return outcome
	}
	if outcome.Status == localnet.OutcomeCancelled {
		node.log.Debug().Int("attempts", attempts).Msg("health wait cancelled")
		return outcome
	}

	node.MarkFailed()
	node.log.Warn().
		Int("attempts", attempts).
		Str("outcome", outcome.String()).
		Str("probe", probe.Target()).
		Msg("node did not become healthy")
	return outcome
}

func (m *Manager) classify(ctx context.Context, node *RunningNode, err error, last health.Result, timeout time.Duration) localnet.HealthOutcome {
	if util.CheckClosed(node.Exited()) {
		return localnet.Unhealthy(fmt.Sprintf("process exited: %v", exitReason(node.ExitErr())))
	}

	if err == nil {
		return localnet.Healthy()
	}
	if ctx.Err() != nil {
		return localnet.Cancelled(ctx.Err().Error())
	}
	if last.Answered {
		return localnet.Unhealthy(last.Detail)
	}
	if last.Detail == "" {
		return localnet.TimedOut(fmt.Sprintf("no answer within %s", timeout))
	}
	return localnet.TimedOut(fmt.Sprintf("no answer within %s: %s", timeout, last.Detail))
}

// Identity discovers the peer identity of a healthy node, empty for roles without discovery.
func (m *Manager) Identity(ctx context.Context, node *RunningNode) (string, error) {
	spec := node.Spec()
	role := m.cfg.Roles.ForRole(spec.Role)
	return health.Discover(ctx, role.Discovery, localnet.NewEndpoint(m.cfg.Host, spec), m.cfg.Health.RequestTimeout)
}

// Stop terminates the node's process group gracefully and force-kills it once the grace period passed.
// Stop is idempotent: stopping a node that was already stopped, or whose process is gone, succeeds.
// A force-kill returns StopResultForceKilled with an error of kind localnet.ErrStopFailed.
func (m *Manager) Stop(node *RunningNode, grace time.Duration) (localnet.StopResult, error) {
	node.stopMu.Lock()
	defer node.stopMu.Unlock()

	if node.stopped {
		return node.stopResult, nil
	}
	node.stopping.Store(true)

	result, err := m.stop(node, grace)
	if !node.waitExited(0) {
		// still running, a later Stop tries again
		return result, err
	}

	node.stopped = true
	node.stopResult = result
	if node.logs != nil {
		if flushErr := node.logs.Flush(); flushErr != nil {
			node.log.Warn().Err(flushErr).Msg("could not flush node log")
		}
	}
	if !node.State().Terminal() {
		_ = node.transition(localnet.HealthStopped)
	}
	return result, err
}

func (m *Manager) stop(node *RunningNode, grace time.Duration) (localnet.StopResult, error) {
	if node.waitExited(0) {
		node.log.Debug().Msg("node already exited")
		return localnet.StopResultStopped, nil
	}

	if err := terminate(node.pid); err != nil {
		return "", localnet.NewNodeError(node.spec, localnet.ErrStopFailed, "", fmt.Errorf("could not signal process: %w", err))
	}
	if node.waitExited(grace) {
		node.log.Info().Msg("node stopped")
		return localnet.StopResultStopped, nil
	}

	node.log.Warn().Dur("grace", grace).Msg("node did not stop within grace period, killing")
	if err := kill(node.pid); err != nil {
		return "", localnet.NewNodeError(node.spec, localnet.ErrStopFailed, "", fmt.Errorf("could not kill process: %w", err))
	}
	if !node.waitExited(killWait) {
		return "", localnet.NewNodeError(node.spec, localnet.ErrStopFailed, "", fmt.Errorf("process %d survived SIGKILL", node.pid))
	}
	return localnet.StopResultForceKilled, localnet.NewNodeError(node.spec, localnet.ErrStopFailed, string(localnet.StopResultForceKilled), nil)
}

func processCreateTime(pid int) (int64, error) {
	p, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		return 0, err
	}
	return p.CreateTime()
}

func exitReason(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}
