//go:build unix

package panelstart

import (
	"os/exec"
	"syscall"
)

// detach places the child in its own process group so signals sent to the
// launcher's group do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
