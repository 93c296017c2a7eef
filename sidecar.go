package panelstart

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// SidecarBuilder assembles and starts the sidecar process: the jar runs under
// java with the resolved flags, in the project root, with its combined output
// appended to a log file.
type SidecarBuilder struct {
	// Root is the project root and the sidecar's working directory
	Root string
	// Artifact is the jar to run
	Artifact ArtifactLocation
	// Runtime is the java executable; located from Environ when empty
	Runtime string
	// Flags are JVM arguments placed before -jar
	Flags []string
	// Environ is the child's environment; the current environment when nil
	Environ []string
	// LogPath receives stdout and stderr
	LogPath string
	// PIDPath records the child's pid; disabled when empty
	PIDPath string

	logger zerolog.Logger
}

// NewSidecarBuilder creates a SidecarBuilder with the default log and pid paths
func NewSidecarBuilder(root string, artifact ArtifactLocation) *SidecarBuilder {
	return &SidecarBuilder{
		Root:     root,
		Artifact: artifact,
		LogPath:  filepath.Join(root, SidecarDir, LogDir, LogFile),
		PIDPath:  filepath.Join(root, SidecarDir, PIDFile),
		logger:   zerolog.Nop(),
	}
}

// WithRuntime sets the java executable
func (b *SidecarBuilder) WithRuntime(path string) *SidecarBuilder {
	b.Runtime = path
	return b
}

// WithFlags sets the JVM arguments
func (b *SidecarBuilder) WithFlags(flags []string) *SidecarBuilder {
	b.Flags = flags
	return b
}

// WithEnviron sets the child environment
func (b *SidecarBuilder) WithEnviron(environ []string) *SidecarBuilder {
	b.Environ = environ
	return b
}

// WithLogPath sets the output log file
func (b *SidecarBuilder) WithLogPath(path string) *SidecarBuilder {
	b.LogPath = path
	return b
}

// WithPIDPath sets the pid file; an empty path disables it
func (b *SidecarBuilder) WithPIDPath(path string) *SidecarBuilder {
	b.PIDPath = path
	return b
}

// WithLogger sets the logger
func (b *SidecarBuilder) WithLogger(logger zerolog.Logger) *SidecarBuilder {
	b.logger = logger
	return b
}

// Args returns the java arguments: flags, then -jar and the artifact path
func (b *SidecarBuilder) Args() []string {
	args := make([]string, 0, len(b.Flags)+2)
	args = append(args, b.Flags...)
	args = append(args, "-jar", b.Artifact.Path)
	return args
}

// Start launches the sidecar without waiting for it. The returned handle is
// never nil; when an error is returned it reports Started() == false. No process
// is created when the artifact or the runtime is missing.
func (b *SidecarBuilder) Start() (*SidecarHandle, error) {
	h := &SidecarHandle{
		LogPath: b.LogPath,
		PIDPath: b.PIDPath,
		exited:  make(chan struct{}),
	}

	if !b.Artifact.Found() {
		close(h.exited)
		return h, &StageError{Stage: StageSidecar, Path: b.Root, Err: ErrArtifactMissing}
	}

	runtimePath := b.Runtime
	if runtimePath == "" {
		environ := b.Environ
		if environ == nil {
			environ = os.Environ()
		}
		path, err := LocateRuntime(environ)
		if err != nil {
			close(h.exited)
			return h, err
		}
		runtimePath = path
	}

	if b.LogPath == "" {
		close(h.exited)
		return h, fmt.Errorf("log path not specified")
	}
	if err := os.MkdirAll(filepath.Dir(b.LogPath), DirMode); err != nil {
		close(h.exited)
		return h, &StageError{Stage: StageSidecar, Path: b.LogPath, Err: fmt.Errorf("creating log directory: %w", err)}
	}

	logFile, err := os.OpenFile(b.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FileMode)
	if err != nil {
		close(h.exited)
		return h, &StageError{Stage: StageSidecar, Path: b.LogPath, Err: err}
	}
	// The child keeps its own descriptor; ours is only needed until Start returns.
	defer func() { _ = logFile.Close() }()

	args := b.Args()
	_, _ = fmt.Fprintf(logFile, "--- %s starting %s %s\n", time.Now().Format(time.RFC3339), runtimePath, strings.Join(args, " "))

	cmd := exec.Command(runtimePath, args...)
	cmd.Dir = b.Root
	cmd.Env = b.Environ
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	detach(cmd)

	if err := cmd.Start(); err != nil {
		close(h.exited)
		return h, &StageError{Stage: StageSidecar, Path: runtimePath, Err: err}
	}

	h.cmd = cmd
	h.started = true

	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.waitErr = err
		h.mu.Unlock()
		close(h.exited)
	}()

	if b.PIDPath != "" {
		pidData := []byte(strconv.Itoa(cmd.Process.Pid) + "\n")
		if err := renameio.WriteFile(b.PIDPath, pidData, FileMode); err != nil {
			b.logger.Warn().Err(err).Str("path", b.PIDPath).Msg("could not write sidecar pid file")
		}
	}

	return h, nil
}

// SidecarHandle tracks a sidecar started by SidecarBuilder.Start
type SidecarHandle struct {
	// LogPath is the file the sidecar writes to
	LogPath string
	// PIDPath is the pid file, if one was requested
	PIDPath string

	cmd     *exec.Cmd
	started bool
	exited  chan struct{}

	mu      sync.Mutex
	waitErr error
}

// Started reports whether the process was created
func (h *SidecarHandle) Started() bool {
	return h != nil && h.started
}

// PID returns the sidecar pid, or 0 if it was not started
func (h *SidecarHandle) PID() int {
	if !h.Started() {
		return 0
	}
	return h.cmd.Process.Pid
}

// Exited is closed once the sidecar has exited. It is already closed for a
// handle that was never started.
func (h *SidecarHandle) Exited() <-chan struct{} {
	return h.exited
}

// Err returns the sidecar's exit error after Exited is closed
func (h *SidecarHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitErr
}
