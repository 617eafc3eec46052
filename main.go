package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/waypoint/internal/commands"
	"github.com/colonyops/waypoint/internal/core/config"
	"github.com/colonyops/waypoint/internal/core/eventbus"
	"github.com/colonyops/waypoint/internal/core/logging"
	"github.com/colonyops/waypoint/internal/core/styles"
	"github.com/colonyops/waypoint/internal/data/db"
	"github.com/colonyops/waypoint/internal/waypoint"
	"github.com/colonyops/waypoint/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, build() falls back to
	// runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser   func()
		waypointApp = &waypoint.App{}
		database    *db.DB
		bus         *eventbus.EventBus
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "waypoint",
		Usage:     "Plan and track exploration routes through the galaxy",
		UsageText: "waypoint [global options] command [command options]",
		Description: `Waypoint orders a list of star systems into a short round trip, estimates
how many jumps it takes with your ship, and ticks systems off while you fly by
following the game journal.

Run 'waypoint plan systems.csv --range 42' to build a route.
Run 'waypoint track' while playing to follow it.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("WAYPOINT_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/waypoint.log)",
				Sources:     cli.EnvVars("WAYPOINT_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("WAYPOINT_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("WAYPOINT_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
			&cli.IntFlag{
				Name:        "profiler-port",
				Usage:       "serve pprof and expvar on localhost at this port (0 disables)",
				Sources:     cli.EnvVars("WAYPOINT_PROFILER_PORT"),
				Destination: &flags.ProfilerPort,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; use explicit path or default to <datadir>/waypoint.log
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "waypoint.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			// Validation ensures the name is known
			styles.UseTheme(cfg.Theme)

			database, err = waypoint.OpenDatabase(cfg)
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			bus = eventbus.New(eventbus.DefaultBufferSize)
			eventbus.RegisterDebugLogger(bus, logging.Component("eventbus"))

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*waypointApp = *waypoint.NewApp(cfg, database, bus, uuid.NewString())

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			// Deliver anything still queued so subscribers see the final state
			if bus != nil {
				bus.Drain()
			}

			if database != nil {
				if err := waypointApp.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewPlanCmd(flags, waypointApp).Register(app)
	app = commands.NewTrackCmd(flags, waypointApp).Register(app)
	app = commands.NewStatusCmd(flags, waypointApp).Register(app)
	app = commands.NewMarkCmd(flags, waypointApp).Register(app)
	app = commands.NewExportCmd(flags, waypointApp).Register(app)
	app = commands.NewHistoryCmd(flags, waypointApp).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
