package localnet

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParams is returned for bad input. Nothing has been started when it is returned.
	ErrInvalidParams = errors.New("invalid params")
	// ErrGenerationFailed is returned when genesis or key material could not be produced.
	ErrGenerationFailed = errors.New("genesis generation failed")
	// ErrTopologyInvalid indicates a violated topology invariant, which is a planning bug.
	ErrTopologyInvalid = errors.New("topology invalid")
	// ErrNodeLaunchFailed is returned when a node process could not be started.
	ErrNodeLaunchFailed = errors.New("node launch failed")
	// ErrNodeUnhealthy is returned when a node reported itself unhealthy or exited during startup.
	ErrNodeUnhealthy = errors.New("node unhealthy")
	// ErrNodeTimedOut is returned when a node did not answer its readiness probe in time.
	ErrNodeTimedOut = errors.New("node timed out")
	// ErrStopFailed is returned when a node ignored the graceful signal and was force-killed.
	ErrStopFailed = errors.New("node did not stop within grace period")
)

// NewInvalidParamsErrorf wraps a formatted message with ErrInvalidParams.
func NewInvalidParamsErrorf(msg string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(msg, args...))
}

// NewTopologyInvalidErrorf wraps a formatted message with ErrTopologyInvalid.
func NewTopologyInvalidErrorf(msg string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTopologyInvalid, fmt.Sprintf(msg, args...))
}

// NodeError is a failure attributed to a single node.
type NodeError struct {
	Node NodeID
	Role Role
	// Kind is one of the node-level sentinels (ErrNodeLaunchFailed, ErrNodeUnhealthy, ErrNodeTimedOut, ErrStopFailed).
	Kind error
	// Outcome is the last observed health-check outcome.
	Outcome string
	Err     error
}

func NewNodeError(spec NodeSpec, kind error, outcome string, err error) *NodeError {
	return &NodeError{
		Node:    spec.ID,
		Role:    spec.Role,
		Kind:    kind,
		Outcome: outcome,
		Err:     err,
	}
}

func (e *NodeError) Error() string {
	msg := fmt.Sprintf("node %s (role %s): %v", e.Node, e.Role, e.Kind)
	if e.Outcome != "" {
		msg += fmt.Sprintf(" [health: %s]", e.Outcome)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the node-level sentinel the error was created with.
func (e *NodeError) Is(target error) bool {
	return e.Kind == target
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// IsNodeError returns the NodeError in err's chain, if any.
func IsNodeError(err error) (*NodeError, bool) {
	var target *NodeError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// StartError is the aggregate failure of a Start. The rollback has already completed when it is returned.
type StartError struct {
	// Node is the node that triggered the failure, empty when the failure was not node-specific.
	Node  NodeID
	Cause error
	// Rollback holds teardown failures, nil if every launched node stopped cleanly.
	Rollback error
	// LogTail holds the last lines of the failed node's log.
	LogTail []string
}

func (e *StartError) Error() string {
	msg := "start failed"
	if e.Node != "" {
		msg += fmt.Sprintf(" at node %s", e.Node)
	}
	msg += ": " + e.Cause.Error()
	if e.Rollback != nil {
		msg += fmt.Sprintf(" (rollback: %v)", e.Rollback)
	}
	return msg
}

func (e *StartError) Unwrap() error {
	return e.Cause
}

// IsStartError returns the StartError in err's chain, if any.
func IsStartError(err error) (*StartError, bool) {
	var target *StartError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
