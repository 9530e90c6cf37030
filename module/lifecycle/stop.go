package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"

	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module/process"
	"github.com/onflow/localnet/storage"
)

// Stop stops every node of a running run, dependents before their dependencies, and moves the run to
// Stopped. Stopping a run that is already Stopped or Failed succeeds without doing anything.
//
// Stop is best-effort: every node is stopped even if stopping another failed, and the union of the
// failures is returned. Nodes that had to be force-killed are logged, not reported.
func (c *Controller) Stop() error {
	if err := c.mutable(); err != nil {
		return err
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.lock(); err != nil {
		return err
	}

	switch state := c.State(); state {
	case localnet.RunStopped, localnet.RunFailed, localnet.RunIdle:
		c.log.Debug().Str("state", string(state)).Msg("run not active, nothing to stop")
		return nil

	case localnet.RunPlanning, localnet.RunStarting:
		// the invocation starting the run is gone
		err := c.teardown()
		c.fail(errors.New("start interrupted"))
		return err

	case localnet.RunRunning:
		if err := c.transition(localnet.RunStopping); err != nil {
			return err
		}
	}

	err := c.teardown()
	if transitionErr := c.transition(localnet.RunStopped); transitionErr != nil {
		err = multierror.Append(err, transitionErr)
	}
	if err == nil {
		c.log.Info().Str("run_id", c.RunID()).Msg("run stopped")
	}
	return err
}

// teardown stops every tracked node in reverse dependency order. The nodes of one layer are stopped
// concurrently; a layer only starts stopping once the previous one is down. It is shared by Stop, the
// rollback of a failed Start and supervision.
func (c *Controller) teardown() error {
	topo := c.Topology()
	if topo == nil {
		return nil
	}
	layers, err := topo.StopLayers()
	if err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	for _, layer := range layers {
		pool := workerpool.New(len(layer))
		for _, spec := range layer {
			node, ok := c.node(spec.ID)
			if !ok {
				continue
			}
			pool.Submit(func() {
				if err := c.stopNode(node); err != nil {
					mu.Lock()
					result = multierror.Append(result, err)
					mu.Unlock()
				}
			})
		}
		pool.StopWait()
	}

	c.mu.RLock()
	aggregator := c.logs
	c.mu.RUnlock()
	if aggregator != nil {
		if err := aggregator.FlushAll(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := c.save(); err != nil {
		c.log.Error().Err(err).Msg("could not record stopped nodes")
	}
	return result.ErrorOrNil()
}

func (c *Controller) stopNode(node *process.RunningNode) error {
	spec := node.Spec()
	started := c.now()
	result, err := c.procs.Stop(node, c.cfg.Stop.Grace)
	if result == localnet.StopResultForceKilled && errors.Is(err, localnet.ErrStopFailed) {
		c.log.Warn().Str("node", spec.ID.String()).Msg("node was force-killed")
		err = nil
	}
	if err != nil {
		c.emitNode(localnet.EventFailed, spec, err.Error(), c.now().Sub(started))
		return err
	}
	c.emitNode(localnet.EventStopped, spec, string(result), c.now().Sub(started))
	return nil
}

// Supervise watches the nodes of a running run until ctx is cancelled. A node exiting on its own fails
// the run: the remaining nodes are stopped and the node's error is returned. Supervise returns nil when
// ctx is cancelled, leaving the run Running for Stop.
func (c *Controller) Supervise(ctx context.Context) error {
	if err := c.mutable(); err != nil {
		return err
	}
	if state := c.State(); state != localnet.RunRunning {
		return fmt.Errorf("cannot supervise a run that is %s", state)
	}

	c.mu.RLock()
	nodes := append([]*process.RunningNode(nil), c.launched...)
	c.mu.RUnlock()

	exited := make(chan *process.RunningNode, len(nodes))
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for _, node := range nodes {
		node := node
		go func() {
			select {
			case <-node.Exited():
				exited <- node
			case <-watchCtx.Done():
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case node := <-exited:
			if node.Stopping() {
				continue
			}
			return c.onUnexpectedExit(node)
		}
	}
}

func (c *Controller) onUnexpectedExit(node *process.RunningNode) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State() != localnet.RunRunning {
		// stopped concurrently
		return nil
	}

	spec := node.Spec()
	reason := "process exited"
	if exitErr := node.ExitErr(); exitErr != nil {
		reason = fmt.Sprintf("process exited: %v", exitErr)
	}
	cause := localnet.NewNodeError(spec, localnet.ErrNodeUnhealthy, reason, nil)
	c.log.Error().Err(cause).Msg("node exited unexpectedly, stopping run")
	c.emitNode(localnet.EventFailed, spec, reason, 0)

	c.fail(cause)
	if err := c.teardown(); err != nil {
		return multierror.Append(cause, err)
	}
	return cause
}

// Clean removes every artifact of the run: genesis and key material, node data and logs, the run record,
// and finally the run directory itself. Clean is safe to call repeatedly and on a failed run, but
// refuses a run that may still own processes.
func (c *Controller) Clean() error {
	if err := c.mutable(); err != nil {
		return err
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()

	record, err := c.store.Load()
	switch {
	case storage.IsNotFound(err):
	case err != nil:
		c.log.Warn().Err(err).Msg("could not read run record, removing run anyway")
	case record.State.Active() || record.State == localnet.RunPlanning:
		return localnet.NewInvalidParamsErrorf("run %s is %s, stop it first", record.RunID, record.State)
	}

	var result *multierror.Error
	if err := c.store.Clear(); err != nil {
		result = multierror.Append(result, err)
	}

	if state := c.State(); state == localnet.RunStopped || state == localnet.RunFailed {
		if err := c.transition(localnet.RunIdle); err != nil {
			result = multierror.Append(result, err)
		}
	}
	c.mu.Lock()
	c.state = localnet.RunIdle
	c.topology = nil
	c.logs = nil
	c.procs = nil
	c.nodes = make(map[localnet.NodeID]*process.RunningNode)
	c.launched = nil
	c.recorded = nil
	c.mu.Unlock()

	c.unlock()
	if err := c.store.Remove(); err != nil {
		result = multierror.Append(result, err)
	}

	if result.ErrorOrNil() == nil {
		c.log.Info().Str("dir", c.store.Dir()).Msg("run cleaned")
	}
	return result.ErrorOrNil()
}
