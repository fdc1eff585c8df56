//go:build !windows

package launch

import (
	"os/exec"
	"syscall"
)

// terminateOnCancel makes context cancellation send SIGTERM so the member can
// release its membership; WaitDelay remains the hard-kill backstop.
func terminateOnCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
}
