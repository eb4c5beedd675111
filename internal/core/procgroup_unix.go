//go:build !windows

package core

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts the child in its own process group so cancellation
// reaches grandchildren too.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
