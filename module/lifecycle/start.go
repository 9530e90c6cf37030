package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module/genesis"
	"github.com/onflow/localnet/module/logs"
	"github.com/onflow/localnet/module/process"
	"github.com/onflow/localnet/module/topology"
	"github.com/onflow/localnet/module/util"
	"github.com/onflow/localnet/storage"
	"github.com/onflow/localnet/utils/logging"
)

// failureTailLines is the number of log lines of the failed node attached to a StartError.
const failureTailLines = 20

// Params are the inputs of Start.
type Params struct {
	Mode localnet.Mode
	// GenesisTemplate is an execution genesis document the run's genesis is derived from. Empty uses the
	// configured template, or the built-in dev genesis.
	GenesisTemplate string
}

// Start plans a new run and launches its nodes in dependency order. It returns once every node is
// Healthy and the run is Running.
//
// Errors of planning (localnet.ErrInvalidParams, localnet.ErrGenerationFailed, localnet.ErrTopologyInvalid)
// are returned before any process is started. Any failure while starting, including cancellation of ctx,
// stops every launched node before a *localnet.StartError is returned.
func (c *Controller) Start(ctx context.Context, params Params) error {
	if err := c.mutable(); err != nil {
		return err
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.lock(); err != nil {
		return err
	}
	if err := c.checkPrevious(); err != nil {
		return err
	}

	c.mu.Lock()
	c.runID = uuid.New().String()
	c.mu.Unlock()

	if err := c.transition(localnet.RunPlanning); err != nil {
		return err
	}
	if err := c.plan(params); err != nil {
		c.fail(err)
		return err
	}

	if err := c.transition(localnet.RunStarting); err != nil {
		c.fail(err)
		return err
	}
	if err := c.launch(ctx); err != nil {
		return c.rollback(err)
	}
	if err := c.transition(localnet.RunRunning); err != nil {
		return c.rollback(err)
	}

	c.log.Info().Str("run_id", c.RunID()).Int("nodes", len(c.Topology().Nodes)).Msg("all nodes healthy, run is running")
	return nil
}

// checkPrevious rejects a start while another run in the data directory may still own processes, and
// removes the artifacts of a finished one.
func (c *Controller) checkPrevious() error {
	if c.State() != localnet.RunIdle {
		return localnet.NewInvalidParamsErrorf("controller already used for run %s", c.RunID())
	}

	record, err := c.store.Load()
	if storage.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if record.State.Active() || record.State == localnet.RunPlanning {
		return localnet.NewInvalidParamsErrorf("run %s in %s is %s, stop it first", record.RunID, c.store.Dir(), record.State)
	}

	c.log.Info().Str("run_id", record.RunID).Str("state", string(record.State)).Msg("removing artifacts of previous run")
	return c.store.Clear()
}

func (c *Controller) plan(params Params) error {
	runDir := c.store.Dir()

	genesisParams, err := c.cfg.GenesisParams(params.GenesisTemplate, runDir)
	if err != nil {
		return err
	}
	gen, err := genesis.NewBuilder(c.log).WithClock(c.now).Build(genesisParams)
	if err != nil {
		return err
	}

	counts := topology.Counts{
		Execution: c.cfg.Topology.ExecutionNodes,
		Consensus: c.cfg.Topology.ConsensusNodes,
		Relays:    c.cfg.Topology.Relays,
	}
	layout := topology.PortLayout{
		Base:       c.cfg.Topology.BasePort,
		RoleStride: c.cfg.Topology.RoleStride,
		NodeStride: c.cfg.Topology.NodeStride,
	}
	topo, err := topology.NewPlanner(c.cfg.Host, layout).WithClock(c.now).Plan(c.RunID(), params.Mode, counts, *gen, runDir)
	if err != nil {
		return err
	}
	if err := topology.CheckPorts(topo); err != nil {
		return err
	}
	if err := topology.WritePrometheusTargets(c.promTargetsPath(), topo); err != nil {
		return fmt.Errorf("could not write prometheus targets: %w", err)
	}

	aggregator := logs.NewAggregator(c.log, topo.RunID, runDir)
	c.mu.Lock()
	c.topology = topo
	c.logs = aggregator
	c.procs = process.NewManager(c.log, c.cfg, topo.Genesis, aggregator).WithEnv(c.env...)
	c.mu.Unlock()

	c.log.Info().
		Str("mode", topo.Mode.String()).
		Int("nodes", len(topo.Nodes)).
		Time("genesis_time", topo.Genesis.Time).
		Msg("run planned")
	return nil
}

// endpoints holds the resolved endpoints of healthy nodes.
type endpoints struct {
	mu       sync.Mutex
	resolved map[localnet.NodeID]*localnet.Endpoint
}

func (e *endpoints) add(endpoint *localnet.Endpoint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolved[endpoint.Node] = endpoint
}

// of returns the endpoints of the dependencies of spec.
func (e *endpoints) of(spec localnet.NodeSpec) map[localnet.NodeID]*localnet.Endpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	deps := make(map[localnet.NodeID]*localnet.Endpoint, len(spec.DependsOn))
	for _, id := range spec.DependencyIDs() {
		if endpoint, ok := e.resolved[id]; ok {
			deps[id] = endpoint
		}
	}
	return deps
}

// launch starts the topology layer by layer. The nodes of a layer are launched concurrently and the
// first failure cancels its siblings.
func (c *Controller) launch(ctx context.Context) error {
	layers, err := c.Topology().LaunchLayers()
	if err != nil {
		return err
	}

	resolved := &endpoints{resolved: make(map[localnet.NodeID]*localnet.Endpoint)}
	for i, layer := range layers {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("start cancelled: %w", err)
		}
		if err := c.checkLaunched(); err != nil {
			return err
		}

		ids := make([]localnet.NodeID, 0, len(layer))
		for _, spec := range layer {
			ids = append(ids, spec.ID)
		}
		c.log.Debug().Int("layer", i).Strs("nodes", logging.NodeIDs(ids)).Msg("launching layer")

		group, groupCtx := errgroup.WithContext(ctx)
		for _, spec := range layer {
			spec := spec
			group.Go(func() error {
				return c.startNode(groupCtx, spec, resolved)
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
	}
	return c.checkLaunched()
}

// checkLaunched fails the start if a node that already became Healthy has exited or left Healthy since.
func (c *Controller) checkLaunched() error {
	c.mu.RLock()
	nodes := append([]*process.RunningNode(nil), c.launched...)
	c.mu.RUnlock()

	for _, node := range nodes {
		exited := util.CheckClosed(node.Exited())
		if !exited && node.State() == localnet.HealthHealthy {
			continue
		}
		spec := node.Spec()
		reason := fmt.Sprintf("node is %s", node.State())
		if exited {
			reason = "process exited"
			if exitErr := node.ExitErr(); exitErr != nil {
				reason = fmt.Sprintf("process exited: %v", exitErr)
			}
		}
		node.MarkFailed()
		c.emitNode(localnet.EventFailed, spec, reason, 0)
		return localnet.NewNodeError(spec, localnet.ErrNodeUnhealthy, reason, nil)
	}
	return nil
}

// startNode launches one node and waits for it to become healthy. Its endpoint is only resolved for
// dependents once it is Healthy.
func (c *Controller) startNode(ctx context.Context, spec localnet.NodeSpec, resolved *endpoints) error {
	node, err := c.procs.Launch(ctx, spec, resolved.of(spec))
	if err != nil {
		c.emitNode(localnet.EventFailed, spec, err.Error(), 0)
		return err
	}
	c.track(node)
	c.emitNode(localnet.EventLaunched, spec, "", 0)

	started := c.now()
	outcome := c.procs.WaitHealthy(ctx, node, c.cfg.HealthTimeout(spec.Role))
	took := c.now().Sub(started)
	if outcome.Status == localnet.OutcomeCancelled {
		// a sibling failed or the start was cancelled, rollback stops the node
		return fmt.Errorf("start of %s cancelled: %w", spec.ID, ctx.Err())
	}
	if !outcome.Healthy() {
		c.emitNode(localnet.EventUnhealthy, spec, outcome.String(), took)
		c.emitNode(localnet.EventFailed, spec, outcome.String(), took)
		return outcome.Err(spec)
	}

	endpoint := localnet.NewEndpoint(c.cfg.Host, spec)
	endpoint.Identity, err = c.procs.Identity(ctx, node)
	if err != nil {
		node.MarkFailed()
		c.emitNode(localnet.EventFailed, spec, err.Error(), took)
		return localnet.NewNodeError(spec, localnet.ErrNodeUnhealthy, "identity discovery failed", err)
	}
	resolved.add(endpoint)

	c.emitNode(localnet.EventHealthy, spec, outcome.String(), took)
	return nil
}

// rollback tears the run down after a failed start and wraps the cause into a StartError.
func (c *Controller) rollback(cause error) error {
	startErr := &localnet.StartError{Cause: cause}
	if nodeErr, ok := localnet.IsNodeError(cause); ok {
		startErr.Node = nodeErr.Node
		c.mu.RLock()
		aggregator := c.logs
		c.mu.RUnlock()
		if aggregator != nil {
			if tail, err := aggregator.Tail(nodeErr.Node, failureTailLines); err == nil {
				startErr.LogTail = tail
			}
		}
	}

	c.log.Error().Err(cause).Str("node", startErr.Node.String()).Msg("start failed, stopping launched nodes")
	startErr.Rollback = c.teardown()
	c.fail(startErr)
	return startErr
}
