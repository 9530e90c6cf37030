package unittest

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessAlive(t *testing.T) {
	assert.True(t, ProcessAlive(os.Getpid()))
	assert.False(t, ProcessAlive(0))
	assert.False(t, ProcessAlive(-1))

	cmd := exec.Command("sleep", "10")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	assert.True(t, ProcessAlive(pid))

	require.NoError(t, cmd.Process.Kill())
	_ = cmd.Wait()
	RequireProcessGone(t, pid, time.Second)
}

func TestFreePort(t *testing.T) {
	port := FreePort(t)
	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	require.NoError(t, listener.Close())
}

func TestReturnsBefore(t *testing.T) {
	assert.True(t, AssertReturnsBefore(t, func() {}, time.Second))
	RequireReturnsBefore(t, func() { time.Sleep(10 * time.Millisecond) }, time.Second, "sleep")

	done := make(chan struct{})
	RequireNotClosed(t, done, "not yet closed")
	close(done)
	RequireCloseBefore(t, done, time.Second, "closed")
}

func TestAssertErrSubstringMatch(t *testing.T) {
	cause := errors.New("port 30000 in use")
	AssertErrSubstringMatch(t, cause, fmt.Errorf("preflight: %w", cause))
}

func TestRunWithTempDir(t *testing.T) {
	var dir string
	RunWithTempDir(t, func(d string) {
		dir = d
		assert.DirExists(t, d)
	})
	assert.NoDirExists(t, dir)
}
