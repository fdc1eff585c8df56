//go:build windows

package launch

import "os/exec"

// terminateOnCancel keeps the default kill: Windows has no SIGTERM to deliver.
func terminateOnCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}
