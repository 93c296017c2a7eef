package panelstart

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// artifactCandidates are probed in order. Both spellings are listed because the
// jar is often uploaded lower-cased and the filesystem may be case-sensitive.
var artifactCandidates = []string{
	filepath.Join(SidecarDir, "Lavalink.jar"),
	filepath.Join(SidecarDir, "lavalink.jar"),
	"Lavalink.jar",
	"lavalink.jar",
}

var envFileCandidates = []string{
	EnvFileName,
	filepath.Join(SourceDir, EnvFileName),
}

// ArtifactLocation is the result of an artifact search
type ArtifactLocation struct {
	// Path is the absolute path of the artifact, empty when not found
	Path string
}

// Found reports whether an artifact was located
func (a ArtifactLocation) Found() bool {
	return a.Path != ""
}

// LocateArtifact returns the first sidecar jar found under root
func LocateArtifact(root string) ArtifactLocation {
	if path, ok := firstRegularFile(root, artifactCandidates); ok {
		return ArtifactLocation{Path: path}
	}
	return ArtifactLocation{}
}

// LocateEnvFile returns the first env file found under root
func LocateEnvFile(root string) (string, bool) {
	return firstRegularFile(root, envFileCandidates)
}

// LocateRuntime finds a java executable, preferring JAVA_HOME from environ
// over the PATH.
func LocateRuntime(environ []string) (string, error) {
	name := "java"
	if runtime.GOOS == "windows" {
		name = "java.exe"
	}

	if home := environMap(environ)["JAVA_HOME"]; home != "" {
		candidate := filepath.Join(home, "bin", name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", &StageError{Stage: StageSidecar, Path: name, Err: ErrRuntimeMissing}
	}
	return path, nil
}

func firstRegularFile(root string, candidates []string) (string, bool) {
	for _, rel := range candidates {
		path := filepath.Join(root, rel)
		if isRegularFile(path) {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			return path, true
		}
	}
	return "", false
}

func isRegularFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return fi.Mode().Perm()&0o111 != 0
}
