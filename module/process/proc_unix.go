//go:build !windows

package process

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configure starts the node in its own process group, so signals reach every process the node spawns
// and an interrupt of the orchestrator does not reach the node.
func configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup sends sig to the process group led by pid, or to pid alone if it has no group of its own.
func signalGroup(pid int, sig unix.Signal) error {
	pgid, err := unix.Getpgid(pid)
	if err == nil && pgid == pid {
		// negative pid targets the full process group
		err = unix.Kill(-pgid, sig)
	} else {
		err = unix.Kill(pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func terminate(pid int) error {
	return signalGroup(pid, unix.SIGTERM)
}

func kill(pid int) error {
	return signalGroup(pid, unix.SIGKILL)
}
