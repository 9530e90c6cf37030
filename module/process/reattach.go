package process

import (
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"

	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/utils/logging"
)

// reattachPoll is the interval liveness of a reattached process is checked at.
const reattachPoll = 50 * time.Millisecond

// Reattach returns a handle to a node process started by an earlier invocation. The process is only
// adopted if it is still running and its creation time matches the recorded one, so a reused PID is
// never signalled. Otherwise the returned node has already exited.
func (m *Manager) Reattach(spec localnet.NodeSpec, pid int, createTime int64, state localnet.HealthState) *RunningNode {
	log := logging.Node(m.log, spec).With().Int("pid", pid).Logger()
	node := newRunningNode(log, spec, pid, createTime, nil)
	if state != "" && state != localnet.HealthStarting {
		_ = node.transition(state)
	}

	p, alive := adopt(pid, createTime)
	if !alive {
		log.Debug().Msg("recorded node process is gone")
		node.stopping.Store(true)
		node.exit(nil)
		return node
	}

	go func() {
		ticker := time.NewTicker(reattachPoll)
		defer ticker.Stop()
		for range ticker.C {
			if running, err := p.IsRunning(); err != nil || !running {
				node.exit(nil)
				return
			}
		}
	}()

	log.Debug().Msg("reattached to node process")
	return node
}

func adopt(pid int, createTime int64) (*gopsprocess.Process, bool) {
	if pid <= 0 {
		return nil, false
	}
	p, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		return nil, false
	}
	created, err := p.CreateTime()
	if err != nil || (createTime != 0 && created != createTime) {
		return nil, false
	}
	running, err := p.IsRunning()
	if err != nil || !running {
		return nil, false
	}
	return p, true
}
