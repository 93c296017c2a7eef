package panelstart

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"vawter.tech/stopper"
)

// EntryKind distinguishes the preferred entry point from the fallback wrapper
type EntryKind int

const (
	// EntryNested is src/bot.py
	EntryNested EntryKind = iota
	// EntryWrapper is the root-level bot.py
	EntryWrapper
)

// String returns the string representation of an EntryKind
func (k EntryKind) String() string {
	if k == EntryWrapper {
		return "wrapper"
	}
	return "nested"
}

// EntryPoint is the script the primary process is started from
type EntryPoint struct {
	// Path is the absolute script path
	Path string
	// Kind tells which candidate was selected
	Kind EntryKind
}

// SelectEntryPoint prefers src/bot.py and falls back to bot.py at the root
func SelectEntryPoint(root string) (EntryPoint, error) {
	if path, ok := firstRegularFile(root, []string{filepath.Join(SourceDir, EntryPointName)}); ok {
		return EntryPoint{Path: path, Kind: EntryNested}, nil
	}
	if path, ok := firstRegularFile(root, []string{EntryPointName}); ok {
		return EntryPoint{Path: path, Kind: EntryWrapper}, nil
	}
	return EntryPoint{}, &StageError{Stage: StageHandoff, Path: root, Err: ErrEntryPointMissing}
}

// LocateInterpreter returns $PYTHON from environ if set, else python3 or python
// from the PATH.
func LocateInterpreter(environ []string) (string, error) {
	candidates := []string{"python3", "python"}
	if explicit := environMap(environ)["PYTHON"]; explicit != "" {
		candidates = append([]string{explicit}, candidates...)
	}

	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			return path, nil
		}
	}
	return "", &StageError{Stage: StageHandoff, Path: candidates[0], Err: ErrInterpreterMissing}
}

// HandoffMode selects how control passes to the primary process
type HandoffMode int

const (
	// HandoffExec replaces the launcher's process image
	HandoffExec HandoffMode = iota
	// HandoffAttached runs the primary as a child and waits for it
	HandoffAttached
)

// String returns the string representation of a HandoffMode
func (m HandoffMode) String() string {
	if m == HandoffAttached {
		return "attached"
	}
	return "exec"
}

// HandoffRequest describes the primary process to start
type HandoffRequest struct {
	// Interpreter is the python executable
	Interpreter string
	// Entry is the script to run
	Entry EntryPoint
	// Environ is the child environment
	Environ []string
	// Mode selects exec or attached
	Mode HandoffMode
	// Logger receives handoff diagnostics
	Logger zerolog.Logger
}

// Argv returns the primary process arguments, argv[0] included
func (r HandoffRequest) Argv() []string {
	return []string{r.Interpreter, r.Entry.Path}
}

// Dir returns the primary process working directory. The bot imports its
// sibling modules, so it runs from the script's own directory.
func (r HandoffRequest) Dir() string {
	return filepath.Dir(r.Entry.Path)
}

// Handoff transfers control to the primary process. In exec mode it only
// returns on failure. In attached mode it returns nil on a zero exit status and
// an *ExitError otherwise.
func Handoff(ctx context.Context, req HandoffRequest) error {
	if req.Interpreter == "" {
		return &StageError{Stage: StageHandoff, Path: req.Entry.Path, Err: ErrInterpreterMissing}
	}
	if req.Entry.Path == "" {
		return &StageError{Stage: StageHandoff, Err: ErrEntryPointMissing}
	}

	if req.Mode == HandoffAttached {
		return runAttached(ctx, req)
	}
	return execHandoff(ctx, req)
}

// runAttached runs the primary as a child with the launcher's stdio and
// forwards interrupt and terminate signals to it until it exits.
func runAttached(ctx context.Context, req HandoffRequest) error {
	argv := req.Argv()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = req.Dir()
	cmd.Env = req.Environ
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return &StageError{Stage: StageHandoff, Path: argv[0], Err: err}
	}

	sctx := stopper.WithContext(ctx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	sctx.Defer(func() {
		signal.Stop(sigs)
	})

	sctx.Go(func(sctx *stopper.Context) error {
		for {
			select {
			case <-sctx.Stopping():
				return nil
			case sig := <-sigs:
				req.Logger.Debug().Str("signal", sig.String()).Msg("forwarding signal to primary process")
				_ = cmd.Process.Signal(sig)
			}
		}
	})

	waitErr := cmd.Wait()

	sctx.Stop(100 * time.Millisecond)
	_ = sctx.Wait()

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code := exitErr.ExitCode()
			if code <= 0 {
				code = 1
			}
			return &ExitError{Code: code}
		}
		return &StageError{Stage: StageHandoff, Path: argv[0], Err: waitErr}
	}
	return nil
}
