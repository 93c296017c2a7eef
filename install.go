package panelstart

import (
	"context"
	"io"
	"os/exec"
	"path/filepath"
)

// InstallDependencies runs `<interpreter> -m pip install -r requirements.txt` in
// root when the requirements file exists. It reports whether pip was run.
func InstallDependencies(ctx context.Context, root, interpreter string, environ []string, out io.Writer) (bool, error) {
	reqPath := filepath.Join(root, RequirementsFile)
	if !isRegularFile(reqPath) {
		return false, nil
	}
	if interpreter == "" {
		return false, &StageError{Stage: StageInstall, Path: reqPath, Err: ErrInterpreterMissing}
	}

	cmd := exec.CommandContext(ctx, interpreter, "-m", "pip", "install",
		"--disable-pip-version-check", "-r", RequirementsFile)
	cmd.Dir = root
	cmd.Env = environ
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		return true, &StageError{Stage: StageInstall, Path: reqPath, Err: err}
	}
	return true, nil
}
