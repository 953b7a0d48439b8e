//go:build unix

package oracle

import (
	"os/exec"
	"syscall"
)

// killTree runs cmd in its own process group and kills the whole group on
// cancellation, so solvers started by wrapper scripts die with them.
func killTree(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
