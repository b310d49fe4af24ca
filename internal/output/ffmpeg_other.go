//go:build !unix

package output

import "os/exec"

func detach(cmd *exec.Cmd) {}
