package localnet

import (
	"fmt"
	"time"
)

// RunState is the state of the lifecycle of one run.
type RunState string

const (
	RunIdle     RunState = "idle"
	RunPlanning RunState = "planning"
	RunStarting RunState = "starting"
	RunRunning  RunState = "running"
	RunStopping RunState = "stopping"
	RunStopped  RunState = "stopped"
	RunFailed   RunState = "failed"
)

var allowedRunTransitions = map[RunState]map[RunState]struct{}{
	RunIdle: {
		RunPlanning: {},
	},
	RunPlanning: {
		RunStarting: {},
		RunFailed:   {},
	},
	RunStarting: {
		RunRunning: {},
		RunFailed:  {},
	},
	RunRunning: {
		RunStopping: {},
		RunFailed:   {},
	},
	RunStopping: {
		RunStopped: {},
	},
	RunStopped: {
		RunIdle: {},
	},
	RunFailed: {
		RunIdle: {},
	},
}

// ValidateRunTransition returns an error if a run may not move from one state to the other.
func ValidateRunTransition(from, to RunState) error {
	next, ok := allowedRunTransitions[from]
	if !ok {
		return fmt.Errorf("invalid run state: %q", from)
	}
	if _, ok := allowedRunTransitions[to]; !ok {
		return fmt.Errorf("invalid run state: %q", to)
	}
	if _, ok := next[to]; !ok {
		return fmt.Errorf("invalid run transition: %s -> %s", from, to)
	}
	return nil
}

// Active returns true while the run may own node processes.
func (s RunState) Active() bool {
	return s == RunStarting || s == RunRunning || s == RunStopping
}

// EventKind is the kind of a lifecycle event.
type EventKind string

const (
	EventLaunched  EventKind = "launched"
	EventHealthy   EventKind = "healthy"
	EventUnhealthy EventKind = "unhealthy"
	EventStopped   EventKind = "stopped"
	EventFailed    EventKind = "failed"
	// EventRunState reports a transition of the run itself, Node is empty.
	EventRunState EventKind = "run-state"
)

// Event is emitted by the lifecycle controller for every node and run transition.
type Event struct {
	RunID string
	Kind  EventKind
	Node  NodeID
	Role  Role
	// State is the new run state of EventRunState events.
	State RunState
	// Detail is the health outcome or stop result, if any.
	Detail string
	// Duration is the time the transition took, e.g. waiting for health.
	Duration time.Duration
	Time     time.Time
}

func (e Event) String() string {
	if e.Kind == EventRunState {
		return fmt.Sprintf("run %s: %s", e.RunID, e.State)
	}
	return fmt.Sprintf("%s: %s", e.Node, e.Kind)
}
