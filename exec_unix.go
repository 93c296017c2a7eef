//go:build unix

package panelstart

import (
	"context"
	"os"
	"syscall"
)

// execHandoff replaces the launcher with the primary process. The sidecar, if
// any, keeps running and is inherited by the new image.
func execHandoff(_ context.Context, req HandoffRequest) error {
	if err := os.Chdir(req.Dir()); err != nil {
		return &StageError{Stage: StageHandoff, Path: req.Dir(), Err: err}
	}

	argv := req.Argv()
	req.Logger.Debug().Strs("argv", argv).Msg("replacing launcher with primary process")

	if err := syscall.Exec(argv[0], argv, req.Environ); err != nil {
		return &StageError{Stage: StageHandoff, Path: argv[0], Err: err}
	}
	return nil
}
