package panelstart

import (
	"time"
)

// Launch defaults, used when neither the process environment nor the env file
// provides a value.
const (
	// DefaultBindHost is the address the sidecar binds to
	DefaultBindHost = "127.0.0.1"

	// DefaultBindPort is the port the sidecar listens on
	DefaultBindPort = 2333

	// DefaultPassword is the sidecar's shared secret
	DefaultPassword = "youshallnotpass"
)

// Project layout, relative to the project root
const (
	// SidecarDir holds the sidecar artifact and its runtime files
	SidecarDir = "lavalink"

	// ArtifactName is the canonical sidecar artifact file name
	ArtifactName = "Lavalink.jar"

	// LogDir is the sidecar log directory, relative to SidecarDir
	LogDir = "logs"

	// LogFile receives the sidecar's combined stdout and stderr
	LogFile = "panel-start.log"

	// PIDFile records the pid of the last sidecar started
	PIDFile = "panel-start.pid"

	// EnvFileName is the optional key=value file at the project root
	EnvFileName = ".env"

	// SourceDir is the directory holding the primary process sources
	SourceDir = "src"

	// EntryPointName is the primary process entry point file name
	EntryPointName = "bot.py"

	// RequirementsFile lists the primary process dependencies
	RequirementsFile = "requirements.txt"
)

// Readiness probe defaults
const (
	// DefaultProbeAttempts is the maximum number of readiness requests
	DefaultProbeAttempts = 20

	// DefaultProbeInterval is the delay between readiness requests
	DefaultProbeInterval = 500 * time.Millisecond

	// DefaultProbeTimeout bounds a single readiness request
	DefaultProbeTimeout = 2 * time.Second

	// DefaultProbePath is the sidecar info endpoint
	DefaultProbePath = "/v4/info"

	// DefaultProbeHost is the loopback address probes are sent to
	DefaultProbeHost = "127.0.0.1"
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode = 0o755

	// FileMode is the default mode for created files
	FileMode = 0o644
)

// Stage identifies a step of the launch sequence
type Stage int

const (
	// StageUnknown represents an unknown stage
	StageUnknown Stage = iota
	// StageResolve builds the LaunchConfig
	StageResolve
	// StageLocate searches for the sidecar artifact and env file
	StageLocate
	// StageNormalize repairs a flattened project layout
	StageNormalize
	// StageInstall installs the primary process dependencies
	StageInstall
	// StageSidecar starts the sidecar process
	StageSidecar
	// StageProbe polls the sidecar for readiness
	StageProbe
	// StageHandoff transfers control to the primary process
	StageHandoff
)

// Stage string constants
const (
	stageUnknownStr   = "unknown"
	stageResolveStr   = "resolve"
	stageLocateStr    = "locate"
	stageNormalizeStr = "normalize"
	stageInstallStr   = "install"
	stageSidecarStr   = "sidecar"
	stageProbeStr     = "probe"
	stageHandoffStr   = "handoff"
)

// String returns the string representation of a Stage
func (s Stage) String() string {
	switch s {
	case StageResolve:
		return stageResolveStr
	case StageLocate:
		return stageLocateStr
	case StageNormalize:
		return stageNormalizeStr
	case StageInstall:
		return stageInstallStr
	case StageSidecar:
		return stageSidecarStr
	case StageProbe:
		return stageProbeStr
	case StageHandoff:
		return stageHandoffStr
	default:
		return stageUnknownStr
	}
}
