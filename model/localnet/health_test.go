package localnet_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/localnet/model/localnet"
)

func TestValidateHealthTransition(t *testing.T) {
	require.NoError(t, localnet.ValidateHealthTransition(localnet.HealthStarting, localnet.HealthHealthy))
	require.NoError(t, localnet.ValidateHealthTransition(localnet.HealthUnhealthy, localnet.HealthHealthy))
	require.NoError(t, localnet.ValidateHealthTransition(localnet.HealthHealthy, localnet.HealthStopped))

	require.Error(t, localnet.ValidateHealthTransition(localnet.HealthStopped, localnet.HealthHealthy))
	require.Error(t, localnet.ValidateHealthTransition(localnet.HealthFailed, localnet.HealthStopped))
	require.Error(t, localnet.ValidateHealthTransition("bogus", localnet.HealthStopped))
}

func TestHealthOutcome_Err(t *testing.T) {
	spec := localnet.NodeSpec{ID: "execution-0", Role: localnet.RoleExecution}

	require.NoError(t, localnet.Healthy().Err(spec))

	err := localnet.TimedOut("no answer").Err(spec)
	require.ErrorIs(t, err, localnet.ErrNodeTimedOut)
	assert.Contains(t, err.Error(), "execution-0")
	assert.Contains(t, err.Error(), "no answer")

	err = localnet.Unhealthy("process exited").Err(spec)
	require.ErrorIs(t, err, localnet.ErrNodeUnhealthy)
	require.False(t, errors.Is(err, localnet.ErrNodeTimedOut))

	wrapped := fmt.Errorf("layer 1: %w", err)
	nodeErr, ok := localnet.IsNodeError(wrapped)
	require.True(t, ok)
	assert.Equal(t, localnet.RoleExecution, nodeErr.Role)

	err = localnet.Cancelled("context canceled").Err(spec)
	require.Error(t, err)
	_, ok = localnet.IsNodeError(err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestStartError(t *testing.T) {
	cause := localnet.Unhealthy("boom").Err(localnet.NodeSpec{ID: "consensus-0", Role: localnet.RoleConsensus})
	err := error(&localnet.StartError{Node: "consensus-0", Cause: cause})

	require.ErrorIs(t, err, localnet.ErrNodeUnhealthy)
	startErr, ok := localnet.IsStartError(err)
	require.True(t, ok)
	assert.Equal(t, localnet.NodeID("consensus-0"), startErr.Node)
	assert.Contains(t, err.Error(), "start failed at node consensus-0")
}

func TestParseRole(t *testing.T) {
	for _, role := range localnet.Roles() {
		parsed, err := localnet.ParseRole(role.String())
		require.NoError(t, err)
		assert.Equal(t, role, parsed)
	}
	_, err := localnet.ParseRole("verification")
	require.Error(t, err)
}
