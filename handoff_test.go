//go:build linux || darwin

package panelstart

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectEntryPoint(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		wantRel  string
		wantKind EntryKind
		wantErr  error
	}{
		{
			name:     "nested preferred",
			files:    []string{"src/bot.py", "bot.py"},
			wantRel:  "src/bot.py",
			wantKind: EntryNested,
		},
		{
			name:     "wrapper fallback",
			files:    []string{"bot.py"},
			wantRel:  "bot.py",
			wantKind: EntryWrapper,
		},
		{
			name:    "neither present",
			files:   []string{"src/config.py"},
			wantErr: ErrEntryPointMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, root, f, "")
			}

			entry, err := SelectEntryPoint(root)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SelectEntryPoint() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if entry.Path != filepath.Join(root, tt.wantRel) {
				t.Errorf("Path = %q, want %q", entry.Path, filepath.Join(root, tt.wantRel))
			}
			if entry.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", entry.Kind, tt.wantKind)
			}
		})
	}
}

func TestLocateInterpreterExplicit(t *testing.T) {
	dir := t.TempDir()
	py := writeScript(t, dir, "mypython", "exit 0")
	t.Setenv("PATH", dir)

	got, err := LocateInterpreter([]string{"PYTHON=mypython"})
	require.NoError(t, err)
	assert.Equal(t, py, got)
}

func TestLocateInterpreterFallback(t *testing.T) {
	dir := t.TempDir()
	py := writeScript(t, dir, "python", "exit 0")
	t.Setenv("PATH", dir)

	got, err := LocateInterpreter(nil)
	require.NoError(t, err)
	assert.Equal(t, py, got)
}

func TestLocateInterpreterMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := LocateInterpreter(nil)
	assert.True(t, errors.Is(err, ErrInterpreterMissing))
}

func TestHandoffRequest(t *testing.T) {
	req := HandoffRequest{
		Interpreter: "/usr/bin/python3",
		Entry:       EntryPoint{Path: "/srv/bot/src/bot.py", Kind: EntryNested},
	}
	assert.Equal(t, []string{"/usr/bin/python3", "/srv/bot/src/bot.py"}, req.Argv())
	assert.Equal(t, "/srv/bot/src", req.Dir())
}

func TestHandoffValidation(t *testing.T) {
	err := Handoff(context.Background(), HandoffRequest{Entry: EntryPoint{Path: "/x/bot.py"}})
	assert.True(t, errors.Is(err, ErrInterpreterMissing))

	err = Handoff(context.Background(), HandoffRequest{Interpreter: "/usr/bin/python3"})
	assert.True(t, errors.Is(err, ErrEntryPointMissing))
}

func TestHandoffAttached(t *testing.T) {
	SkipIfShort(t, "starts a process")

	root := t.TempDir()
	entry := writeFile(t, root, "src/bot.py", "")
	out := filepath.Join(root, "out.txt")
	py := writeScript(t, root, "python", strings.Join([]string{
		`echo "$1" > "` + out + `"`,
		`echo "$LAVALINK_PORT" >> "` + out + `"`,
		`basename "$(pwd)" >> "` + out + `"`,
		`exit 0`,
	}, "\n"))

	err := Handoff(context.Background(), HandoffRequest{
		Interpreter: py,
		Entry:       EntryPoint{Path: entry, Kind: EntryNested},
		Environ:     []string{"LAVALINK_PORT=2444", "PATH=" + os.Getenv("PATH")},
		Mode:        HandoffAttached,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, entry+"\n2444\nsrc\n", string(data))
}

func TestHandoffAttachedExitCode(t *testing.T) {
	SkipIfShort(t, "starts a process")

	root := t.TempDir()
	entry := writeFile(t, root, "bot.py", "")
	py := writeScript(t, root, "python", "exit 3")

	err := Handoff(context.Background(), HandoffRequest{
		Interpreter: py,
		Entry:       EntryPoint{Path: entry, Kind: EntryWrapper},
		Mode:        HandoffAttached,
	})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 3, exitErr.Code)
}

func TestHandoffAttachedStartFailure(t *testing.T) {
	root := t.TempDir()
	entry := writeFile(t, root, "bot.py", "")

	err := Handoff(context.Background(), HandoffRequest{
		Interpreter: filepath.Join(root, "missing-python"),
		Entry:       EntryPoint{Path: entry, Kind: EntryWrapper},
		Mode:        HandoffAttached,
	})

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageHandoff, stageErr.Stage)
}
