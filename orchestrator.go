package panelstart

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HandoffFunc transfers control to the primary process
type HandoffFunc func(ctx context.Context, req HandoffRequest) error

// Orchestrator runs the launch sequence: resolve configuration, locate the
// sidecar jar, repair the project layout, install dependencies, start the
// sidecar, probe it and hand off to the bot. Only the handoff, and a missing
// interpreter when dependencies must be installed, can fail the run.
type Orchestrator struct {
	// Root is the project root
	Root string
	// EnvFile overrides env file discovery
	EnvFile string
	// Environ is the base environment; the process environment when nil
	Environ []string
	// Sidecar enables the sidecar stages
	Sidecar bool
	// Install enables dependency installation
	Install bool
	// Mode selects exec or attached handoff
	Mode HandoffMode

	logger      zerolog.Logger
	proberOpts  []ProberOption
	handoff     HandoffFunc
	runtime     string
	interpreter string
	installOut  io.Writer
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithEnviron sets the base environment
func WithEnviron(environ []string) Option {
	return func(o *Orchestrator) {
		o.Environ = environ
	}
}

// WithEnvFile sets an explicit env file
func WithEnvFile(path string) Option {
	return func(o *Orchestrator) {
		o.EnvFile = path
	}
}

// WithSidecar enables or disables launching the sidecar
func WithSidecar(enabled bool) Option {
	return func(o *Orchestrator) {
		o.Sidecar = enabled
	}
}

// WithInstall enables or disables dependency installation
func WithInstall(enabled bool) Option {
	return func(o *Orchestrator) {
		o.Install = enabled
	}
}

// WithHandoffMode selects exec or attached handoff
func WithHandoffMode(mode HandoffMode) Option {
	return func(o *Orchestrator) {
		o.Mode = mode
	}
}

// WithHandoff replaces the handoff implementation
func WithHandoff(fn HandoffFunc) Option {
	return func(o *Orchestrator) {
		o.handoff = fn
	}
}

// WithProberOptions adds options applied after the defaults derived from the
// resolved configuration.
func WithProberOptions(opts ...ProberOption) Option {
	return func(o *Orchestrator) {
		o.proberOpts = append(o.proberOpts, opts...)
	}
}

// WithRuntime sets the java executable instead of searching for it
func WithRuntime(path string) Option {
	return func(o *Orchestrator) {
		o.runtime = path
	}
}

// WithInterpreter sets the python executable instead of searching for it
func WithInterpreter(path string) Option {
	return func(o *Orchestrator) {
		o.interpreter = path
	}
}

// WithInstallOutput sets where pip output is written
func WithInstallOutput(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.installOut = w
	}
}

// New creates an Orchestrator for root with default settings
func New(root string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		Root:       root,
		Sidecar:    true,
		Install:    true,
		Mode:       HandoffExec,
		logger:     zerolog.Nop(),
		handoff:    Handoff,
		installOut: os.Stderr,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run executes the launch sequence. In exec mode a successful run does not
// return.
func (o *Orchestrator) Run(ctx context.Context) error {
	environ := o.Environ
	if environ == nil {
		environ = os.Environ()
	}

	log := o.logger.With().Str("run_id", uuid.NewString()).Logger()
	stageLog := func(s Stage) zerolog.Logger {
		return log.With().Str("stage", s.String()).Logger()
	}

	// Resolve
	l := stageLog(StageResolve)
	cfg, warnings := Resolve(ResolveOptions{Root: o.Root, Environ: environ, EnvFile: o.EnvFile})
	for _, w := range warnings {
		l.Warn().Msg(w.String())
	}
	l.Info().
		Str("root", cfg.WorkDir).
		Str("env_file", cfg.EnvFile).
		Str("address", cfg.Address()).
		Int("runtime_flags", len(cfg.RuntimeFlags)).
		Msg("configuration resolved")

	botEnviron := cfg.Environ(environ)

	// Locate
	l = stageLog(StageLocate)
	artifact := LocateArtifact(cfg.WorkDir)
	if artifact.Found() {
		l.Info().Str("artifact", artifact.Path).Msg("sidecar artifact found")
	} else {
		l.Warn().Msg("no sidecar artifact found")
	}

	// Normalize
	l = stageLog(StageNormalize)
	moved, err := NewNormalizer(cfg.WorkDir, WithNormalizerLogger(l)).Normalize()
	if err != nil {
		l.Warn().Err(err).Int("moved", moved).Msg("layout repair incomplete")
	} else if moved > 0 {
		l.Info().Int("moved", moved).Msg("restored flattened project files")
	}

	// Install
	if o.Install {
		l = stageLog(StageInstall)
		if err := o.install(ctx, cfg, botEnviron, l); err != nil {
			return err
		}
	}

	// Sidecar
	handle := &SidecarHandle{}
	if o.Sidecar {
		l = stageLog(StageSidecar)
		handle = o.startSidecar(cfg, artifact, environ, l)
	}

	// Probe
	if handle.Started() {
		l = stageLog(StageProbe)
		opts := append([]ProberOption{WithPassword(cfg.Password), WithProbeLogger(l)}, o.proberOpts...)
		prober := NewProber(opts...)
		report := prober.Probe(ctx, cfg.BindPort)
		if report.Result == Ready {
			l.Info().Int("attempts", report.Attempts).Int("status", report.Status).Dur("elapsed", report.Elapsed).Msg("sidecar is ready")
		} else {
			l.Warn().Err(ErrReadinessTimeout).AnErr("last_error", report.LastErr).Int("attempts", report.Attempts).Dur("elapsed", report.Elapsed).
				Msg("sidecar readiness not confirmed, continuing anyway")
		}
	}

	// Handoff
	l = stageLog(StageHandoff)
	entry, err := SelectEntryPoint(cfg.WorkDir)
	if err != nil {
		l.Error().Err(err).Msg("no primary entry point")
		return err
	}

	interpreter := o.interpreter
	if interpreter == "" {
		interpreter, err = LocateInterpreter(botEnviron)
		if err != nil {
			l.Error().Err(err).Msg("no python interpreter")
			return err
		}
	}

	req := HandoffRequest{
		Interpreter: interpreter,
		Entry:       entry,
		Environ:     botEnviron,
		Mode:        o.Mode,
		Logger:      l,
	}
	l.Info().Str("entry", entry.Path).Stringer("kind", entry.Kind).Stringer("mode", o.Mode).Msg("starting primary process")

	if err := o.handoff(ctx, req); err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			l.Error().Err(err).Msg("handoff failed")
		}
		return err
	}
	return nil
}

func (o *Orchestrator) install(ctx context.Context, cfg LaunchConfig, environ []string, l zerolog.Logger) error {
	if !isRegularFile(filepath.Join(cfg.WorkDir, RequirementsFile)) {
		return nil
	}

	interpreter := o.interpreter
	if interpreter == "" {
		var err error
		interpreter, err = LocateInterpreter(environ)
		if err != nil {
			l.Error().Err(err).Msg("cannot install dependencies")
			return err
		}
	}

	l.Info().Str("interpreter", interpreter).Msg("installing dependencies")
	if _, err := InstallDependencies(ctx, cfg.WorkDir, interpreter, environ, o.installOut); err != nil {
		l.Warn().Err(err).Msg("dependency installation failed, continuing")
	}
	return nil
}

func (o *Orchestrator) startSidecar(cfg LaunchConfig, artifact ArtifactLocation, environ []string, l zerolog.Logger) *SidecarHandle {
	handle, err := NewSidecarBuilder(cfg.WorkDir, artifact).
		WithRuntime(o.runtime).
		WithFlags(cfg.RuntimeFlags).
		WithEnviron(cfg.SidecarEnviron(environ)).
		WithLogger(l).
		Start()

	switch {
	case err == nil:
		l.Info().Int("pid", handle.PID()).Str("log", handle.LogPath).Msg("sidecar started")
	case errors.Is(err, ErrArtifactMissing):
		l.Warn().Msg("sidecar artifact missing, skipping sidecar")
	case errors.Is(err, ErrRuntimeMissing):
		l.Warn().Msg("java not found, skipping sidecar")
	default:
		l.Error().Err(err).Msg("sidecar failed to start")
	}
	return handle
}
