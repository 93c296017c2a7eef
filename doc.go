// Package panelstart launches a chat bot together with the Lavalink audio
// sidecar it depends on, as a single foreground process suitable for hosting
// panels that only run one start command.
//
// The core functionality centers around the Orchestrator type, which runs the
// launch sequence once and then hands control to the bot:
//
//	o := panelstart.New(".",
//	    panelstart.WithLogger(logger),
//	    panelstart.WithProberOptions(panelstart.WithAttempts(20)),
//	)
//
//	// Does not return on success: the process becomes the bot
//	if err := o.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Launch Sequence
//
//   - Resolve builds a LaunchConfig from the environment, an optional .env
//     file and compiled defaults
//   - LocateArtifact finds lavalink/Lavalink.jar or one of its variants
//   - Normalizer restores files such as `src\cogs\music.py` that an archive
//     tool extracted as flat names
//   - InstallDependencies runs pip when requirements.txt exists
//   - SidecarBuilder starts the jar detached, output appended to
//     lavalink/logs/panel-start.log
//   - Prober polls /v4/info a bounded number of times
//   - Handoff execs src/bot.py, or bot.py when the nested script is absent
//
// Every stage before the handoff reports problems and carries on: a missing
// jar, a missing java or a sidecar that never answers only cost the bot its
// music features. The handoff itself has no fallback, so its failure is the
// run's failure.
//
// The individual stages are exported so tools can reuse them, for example to
// repair a project tree without launching anything:
//
//	moved, err := panelstart.NewNormalizer("/srv/bot").Normalize()
package panelstart
