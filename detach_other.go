//go:build !unix

package panelstart

import (
	"os/exec"
)

// detach is a no-op on platforms without process groups
func detach(_ *exec.Cmd) {}
