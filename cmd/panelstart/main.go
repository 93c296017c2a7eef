// Package main is the panelstart command: it starts the Lavalink sidecar when
// one is bundled, waits briefly for it and then becomes the bot process.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/axondata/go-panelstart"
)

var config struct {
	Root          string
	EnvFile       string
	NoSidecar     bool
	NoInstall     bool
	NoExec        bool
	ProbeAttempts int
	ProbeInterval time.Duration
	LogLevel      levelFlag
	LogJSON       bool
}

var rootCmd = &cobra.Command{
	Use:   "panelstart",
	Short: "Start the Lavalink sidecar and hand off to the bot",
	Long: `panelstart resolves the bot's configuration, starts lavalink/Lavalink.jar
in the background when it is present, polls it until it answers and then
replaces itself with src/bot.py (or bot.py).

Sidecar problems are logged and skipped; only a missing bot entry point or
python interpreter makes panelstart exit non-zero.`,
	Version: panelstart.Version,
	Example: `  # Launch from the project directory
  panelstart

  # Bot only, keep panelstart as the parent process
  panelstart --no-sidecar --no-exec

  # Give a slow sidecar more time
  panelstart --probe-attempts=60 --probe-interval=1s`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLauncher,
}

func init() {
	config.LogLevel = levelFlag(zerolog.InfoLevel)

	rootCmd.Flags().StringVar(&config.Root, "root", ".",
		"Project root containing src/, lavalink/ and .env")
	rootCmd.Flags().StringVar(&config.EnvFile, "env-file", "",
		"Env file to load instead of <root>/.env")
	rootCmd.Flags().BoolVar(&config.NoSidecar, "no-sidecar", false,
		"Do not start Lavalink even if the jar is present")
	rootCmd.Flags().BoolVar(&config.NoInstall, "no-install", false,
		"Skip pip install -r requirements.txt")
	rootCmd.Flags().BoolVar(&config.NoExec, "no-exec", runtime.GOOS == "windows",
		"Run the bot as a child process instead of replacing panelstart")
	rootCmd.Flags().IntVar(&config.ProbeAttempts, "probe-attempts", panelstart.DefaultProbeAttempts,
		"Maximum readiness requests sent to the sidecar")
	rootCmd.Flags().DurationVar(&config.ProbeInterval, "probe-interval", panelstart.DefaultProbeInterval,
		"Delay between readiness requests")
	rootCmd.Flags().Var(&config.LogLevel, "log-level",
		"Log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&config.LogJSON, "log-json", false,
		"Write JSON log lines instead of console output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *panelstart.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		log.Error().Err(err).Msg("launch failed")
		os.Exit(1)
	}
}

func runLauncher(_ *cobra.Command, _ []string) error {
	setupLogging()

	mode := panelstart.HandoffExec
	if config.NoExec {
		mode = panelstart.HandoffAttached
	}

	o := panelstart.New(config.Root,
		panelstart.WithLogger(log.Logger),
		panelstart.WithEnvFile(config.EnvFile),
		panelstart.WithSidecar(!config.NoSidecar),
		panelstart.WithInstall(!config.NoInstall),
		panelstart.WithHandoffMode(mode),
		panelstart.WithProberOptions(
			panelstart.WithAttempts(config.ProbeAttempts),
			panelstart.WithInterval(config.ProbeInterval),
		),
	)

	log.Info().Str("version", panelstart.Version).Msg("panelstart starting")
	return o.Run(context.Background())
}

func setupLogging() {
	level := zerolog.Level(config.LogLevel)
	if os.Getenv("DEBUG") == "1" {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.LogJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// levelFlag adapts zerolog.Level to a command-line flag
type levelFlag zerolog.Level

var _ pflag.Value = (*levelFlag)(nil)

func (l *levelFlag) String() string {
	return zerolog.Level(*l).String()
}

func (l *levelFlag) Set(s string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", s, err)
	}
	if level == zerolog.NoLevel {
		return fmt.Errorf("invalid log level %q", s)
	}
	*l = levelFlag(level)
	return nil
}

func (l *levelFlag) Type() string {
	return "level"
}
