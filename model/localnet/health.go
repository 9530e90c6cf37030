package localnet

import (
	"fmt"
)

// HealthState is the supervised state of a running node.
type HealthState string

const (
	HealthStarting  HealthState = "starting"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
	HealthStopped   HealthState = "stopped"
	HealthFailed    HealthState = "failed"
)

var allowedHealthTransitions = map[HealthState]map[HealthState]struct{}{
	HealthStarting: {
		HealthHealthy:   {},
		HealthUnhealthy: {},
		HealthStopped:   {},
		HealthFailed:    {},
	},
	HealthUnhealthy: {
		HealthHealthy: {},
		HealthStopped: {},
		HealthFailed:  {},
	},
	HealthHealthy: {
		HealthUnhealthy: {},
		HealthStopped:   {},
		HealthFailed:    {},
	},
	HealthStopped: {},
	HealthFailed:  {},
}

// Terminal returns true for states a node never leaves.
func (s HealthState) Terminal() bool {
	return s == HealthStopped || s == HealthFailed
}

// ValidateHealthTransition returns an error if a node may not move from one state to the other.
func ValidateHealthTransition(from, to HealthState) error {
	next, ok := allowedHealthTransitions[from]
	if !ok {
		return fmt.Errorf("invalid health state: %q", from)
	}
	if _, ok := allowedHealthTransitions[to]; !ok {
		return fmt.Errorf("invalid health state: %q", to)
	}
	if _, ok := next[to]; !ok {
		return fmt.Errorf("invalid health transition: %s -> %s", from, to)
	}
	return nil
}

// HealthStatus is the result class of waiting for a node to become healthy.
type HealthStatus string

const (
	OutcomeHealthy   HealthStatus = "healthy"
	OutcomeUnhealthy HealthStatus = "unhealthy"
	OutcomeTimedOut  HealthStatus = "timed-out"
	// OutcomeCancelled means the wait was abandoned before the node could be judged.
	OutcomeCancelled HealthStatus = "cancelled"
)

// HealthOutcome is the result of WaitHealthy.
type HealthOutcome struct {
	Status HealthStatus
	Reason string
}

func Healthy() HealthOutcome {
	return HealthOutcome{Status: OutcomeHealthy}
}

func Unhealthy(reason string) HealthOutcome {
	return HealthOutcome{Status: OutcomeUnhealthy, Reason: reason}
}

func TimedOut(reason string) HealthOutcome {
	return HealthOutcome{Status: OutcomeTimedOut, Reason: reason}
}

func Cancelled(reason string) HealthOutcome {
	return HealthOutcome{Status: OutcomeCancelled, Reason: reason}
}

func (o HealthOutcome) Healthy() bool {
	return o.Status == OutcomeHealthy
}

func (o HealthOutcome) String() string {
	if o.Reason == "" {
		return string(o.Status)
	}
	return fmt.Sprintf("%s: %s", o.Status, o.Reason)
}

// Err maps a non-healthy outcome onto the error taxonomy.
func (o HealthOutcome) Err(spec NodeSpec) error {
	switch o.Status {
	case OutcomeHealthy:
		return nil
	case OutcomeTimedOut:
		return NewNodeError(spec, ErrNodeTimedOut, o.String(), nil)
	case OutcomeCancelled:
		return fmt.Errorf("node %s: %s", spec.ID, o.String())
	default:
		return NewNodeError(spec, ErrNodeUnhealthy, o.String(), nil)
	}
}

// StopResult is the result of stopping a node.
type StopResult string

const (
	StopResultStopped     StopResult = "stopped"
	StopResultForceKilled StopResult = "force-killed"
)
