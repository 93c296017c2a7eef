//go:build linux || darwin

package panelstart

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordHandoff captures the request instead of replacing the test binary
type recordHandoff struct {
	calls []HandoffRequest
	err   error
}

func (r *recordHandoff) handoff(_ context.Context, req HandoffRequest) error {
	r.calls = append(r.calls, req)
	return r.err
}

func newTestOrchestrator(t *testing.T, root string, rec *recordHandoff, logs *bytes.Buffer, opts ...Option) *Orchestrator {
	t.Helper()
	base := []Option{
		WithEnviron([]string{"PATH=" + os.Getenv("PATH"), "DISCORD_TOKEN=t"}),
		WithLogger(zerolog.New(logs)),
		WithInterpreter("/usr/bin/python3"),
		WithInstall(false),
		WithHandoff(rec.handoff),
	}
	return New(root, append(base, opts...)...)
}

func TestRunWithoutArtifactProceedsToHandoff(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/bot.py", "")
	marker := filepath.Join(root, "java-ran")
	java := writeScript(t, root, "java", "touch "+marker)

	rec := &recordHandoff{}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, root, rec, &logs, WithRuntime(java))

	require.NoError(t, o.Run(context.Background()))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, filepath.Join(root, "src", "bot.py"), rec.calls[0].Entry.Path)
	assert.Equal(t, EntryNested, rec.calls[0].Entry.Kind)
	assert.False(t, fileExists(marker), "sidecar must not start without an artifact")
	assert.Contains(t, logs.String(), "sidecar artifact missing")
	assert.NotContains(t, logs.String(), `"stage":"probe"`)
}

func TestRunProbeNeverReadyStillHandsOff(t *testing.T) {
	SkipIfShort(t, "starts a process")

	root := t.TempDir()
	writeFile(t, root, "bot.py", "")
	writeFile(t, root, "lavalink/Lavalink.jar", "jar")
	java := writeScript(t, root, "java", "exit 0")
	port := closedPort(t)

	rec := &recordHandoff{}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, root, rec, &logs,
		WithRuntime(java),
		WithEnviron([]string{"PATH=" + os.Getenv("PATH"), "LAVALINK_PORT=" + strconv.Itoa(port)}),
		WithProberOptions(WithAttempts(3), WithInterval(10*time.Millisecond), WithRequestTimeout(100*time.Millisecond)),
	)

	require.NoError(t, o.Run(context.Background()))

	require.Len(t, rec.calls, 1)
	req := rec.calls[0]
	assert.Equal(t, EntryWrapper, req.Entry.Kind)
	assert.Equal(t, "/usr/bin/python3", req.Interpreter)
	assert.Equal(t, HandoffExec, req.Mode)
	assert.Equal(t, strconv.Itoa(port), environMap(req.Environ)["LAVALINK_PORT"])

	out := logs.String()
	assert.Contains(t, out, "sidecar started")
	assert.Contains(t, out, "readiness not confirmed")
	assert.Contains(t, out, `"attempts":3`)
	assert.Contains(t, out, "bot token missing")
	assert.True(t, fileExists(filepath.Join(root, SidecarDir, LogDir, LogFile)))
}

func TestRunSidecarReady(t *testing.T) {
	SkipIfShort(t, "starts a process")

	root := t.TempDir()
	writeFile(t, root, "src/bot.py", "")
	writeFile(t, root, "Lavalink.jar", "jar")
	java := writeScript(t, root, "java", "exit 0")

	srv := newInfoServer(t)
	defer srv.Close()

	rec := &recordHandoff{}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, root, rec, &logs,
		WithRuntime(java),
		WithEnviron([]string{"LAVALINK_PORT=" + strconv.Itoa(serverPort(t, srv)), "DISCORD_TOKEN=t"}),
		WithProberOptions(WithInterval(10*time.Millisecond)),
	)

	require.NoError(t, o.Run(context.Background()))
	require.Len(t, rec.calls, 1)
	assert.Contains(t, logs.String(), "sidecar is ready")
}

func TestRunSidecarDisabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/bot.py", "")
	writeFile(t, root, "lavalink/Lavalink.jar", "jar")
	marker := filepath.Join(root, "java-ran")
	java := writeScript(t, root, "java", "touch "+marker)

	rec := &recordHandoff{}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, root, rec, &logs, WithRuntime(java), WithSidecar(false))

	require.NoError(t, o.Run(context.Background()))
	require.Len(t, rec.calls, 1)
	assert.False(t, fileExists(marker))
}

func TestRunRepairsLayoutBeforeHandoff(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, `src\bot.py`, "print('hi')")

	rec := &recordHandoff{}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, root, rec, &logs, WithSidecar(false))

	require.NoError(t, o.Run(context.Background()))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, filepath.Join(root, "src", "bot.py"), rec.calls[0].Entry.Path)
	assert.Equal(t, filepath.Join(root, "src"), rec.calls[0].Dir())
}

func TestRunMissingEntryPointIsFatal(t *testing.T) {
	root := t.TempDir()

	rec := &recordHandoff{}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, root, rec, &logs, WithSidecar(false))

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEntryPointMissing))
	assert.Empty(t, rec.calls)
}

func TestRunHandoffErrorPropagates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bot.py", "")

	rec := &recordHandoff{err: &ExitError{Code: 7}}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, root, rec, &logs, WithSidecar(false), WithHandoffMode(HandoffAttached))

	err := o.Run(context.Background())
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 7, exitErr.Code)
	assert.Equal(t, HandoffAttached, rec.calls[0].Mode)
}

func TestRunInstallWithoutInterpreterIsFatal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bot.py", "")
	writeFile(t, root, RequirementsFile, "discord.py\n")
	t.Setenv("PATH", t.TempDir())

	rec := &recordHandoff{}
	var logs bytes.Buffer
	o := New(root,
		WithEnviron([]string{}),
		WithLogger(zerolog.New(&logs)),
		WithSidecar(false),
		WithHandoff(rec.handoff),
	)

	err := o.Run(context.Background())
	assert.True(t, errors.Is(err, ErrInterpreterMissing))
	assert.Empty(t, rec.calls)
}

func TestRunInstallsDependencies(t *testing.T) {
	SkipIfShort(t, "starts a process")

	root := t.TempDir()
	writeFile(t, root, "bot.py", "")
	writeFile(t, root, RequirementsFile, "discord.py\n")
	py := writeScript(t, root, "python", `echo "installing $*"`)

	rec := &recordHandoff{}
	var logs, pipOut bytes.Buffer
	o := newTestOrchestrator(t, root, rec, &logs,
		WithSidecar(false),
		WithInstall(true),
		WithInterpreter(py),
		WithInstallOutput(&pipOut),
	)

	require.NoError(t, o.Run(context.Background()))
	assert.Contains(t, pipOut.String(), "installing -m pip install")
	require.Len(t, rec.calls, 1)
	assert.Equal(t, py, rec.calls[0].Interpreter)
}

func TestRunLogsCarryRunID(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bot.py", "")

	rec := &recordHandoff{}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, root, rec, &logs, WithSidecar(false))
	require.NoError(t, o.Run(context.Background()))

	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		assert.Contains(t, string(line), `"run_id":"`)
		assert.Contains(t, string(line), `"stage":"`)
	}
}
