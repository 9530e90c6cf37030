//go:build windows

package process

import (
	"os"
	"os/exec"
)

func configure(cmd *exec.Cmd) {}

// Windows has no graceful signal for console-less processes, both terminate and kill end the process.
func terminate(pid int) error {
	return kill(pid)
}

func kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return p.Kill()
}
