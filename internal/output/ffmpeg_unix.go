//go:build unix

package output

import (
	"os/exec"
	"syscall"
)

// detach puts the encoder in its own process group so a terminal Ctrl+C
// reaches only the recorder, which then closes stdin to finish the file
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
