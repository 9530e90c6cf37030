package process

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module/logs"
	"github.com/onflow/localnet/module/util"
)

// RunningNode is one supervised node process. It is owned by the controller of the run.
type RunningNode struct {
	spec localnet.NodeSpec
	log  zerolog.Logger

	pid int
	// createTime is the process creation time in unix milliseconds, identifying the process across
	// PID reuse.
	createTime int64
	logs       *logs.Handle

	state    *atomic.String
	stopping *atomic.Bool

	exited  chan struct{}
	exitErr error

	stopMu     sync.Mutex
	stopped    bool
	stopResult localnet.StopResult
}

func newRunningNode(log zerolog.Logger, spec localnet.NodeSpec, pid int, createTime int64, handle *logs.Handle) *RunningNode {
	return &RunningNode{
		spec:       spec,
		log:        log,
		pid:        pid,
		createTime: createTime,
		logs:       handle,
		state:      atomic.NewString(string(localnet.HealthStarting)),
		stopping:   atomic.NewBool(false),
		exited:     make(chan struct{}),
	}
}

func (n *RunningNode) Spec() localnet.NodeSpec {
	return n.spec
}

func (n *RunningNode) ID() localnet.NodeID {
	return n.spec.ID
}

func (n *RunningNode) PID() int {
	return n.pid
}

// CreateTime is the creation time of the process in unix milliseconds.
func (n *RunningNode) CreateTime() int64 {
	return n.createTime
}

// LogPath is the path of the node's log file, empty for reattached nodes.
func (n *RunningNode) LogPath() string {
	if n.logs == nil {
		return ""
	}
	return n.logs.Path
}

func (n *RunningNode) State() localnet.HealthState {
	return localnet.HealthState(n.state.Load())
}

// Exited is closed once the node process exited.
func (n *RunningNode) Exited() <-chan struct{} {
	return n.exited
}

// ExitErr is the error the process exited with. Only valid once Exited is closed.
func (n *RunningNode) ExitErr() error {
	return n.exitErr
}

// Stopping returns true once a stop of the node was initiated.
func (n *RunningNode) Stopping() bool {
	return n.stopping.Load()
}

// transition moves the node to the given state. Transitions out of a terminal state are rejected.
func (n *RunningNode) transition(to localnet.HealthState) error {
	for {
		from := n.State()
		if from == to {
			return nil
		}
		if err := localnet.ValidateHealthTransition(from, to); err != nil {
			return fmt.Errorf("node %s: %w", n.spec.ID, err)
		}
		if n.state.CompareAndSwap(string(from), string(to)) {
			n.log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("node state changed")
			return nil
		}
	}
}

// MarkFailed moves a node that is not terminal yet to Failed.
func (n *RunningNode) MarkFailed() {
	_ = n.transition(localnet.HealthFailed)
}

// exit records the exit of the process. An exit that was not requested by Stop fails the node.
func (n *RunningNode) exit(err error) {
	n.exitErr = err
	close(n.exited)

	if n.stopping.Load() {
		return
	}
	n.log.Warn().Err(err).Msg("node process exited unexpectedly")
	n.MarkFailed()
}

// waitExited waits up to d for the process to exit.
func (n *RunningNode) waitExited(d time.Duration) bool {
	if d <= 0 {
		return util.CheckClosed(n.exited)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-n.exited:
		return true
	case <-timer.C:
		return false
	}
}
