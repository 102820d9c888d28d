//go:build unix

package downloader

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts c in its own process group and kills the whole group on
// cancellation, so helpers such as ffmpeg do not outlive the attempt.
func killProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
