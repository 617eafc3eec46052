package commands

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/colonyops/waypoint/internal/core/eventbus"
	"github.com/colonyops/waypoint/internal/core/logging"
	"github.com/colonyops/waypoint/internal/core/styles"
	"github.com/colonyops/waypoint/internal/store/jsonfile"
	"github.com/colonyops/waypoint/internal/tui"
	"github.com/colonyops/waypoint/internal/waypoint"
	"github.com/colonyops/waypoint/pkg/utils"
)

// transcriptLines caps the status changes replayed after the tracker view closes.
const transcriptLines = 200

// publishVars exposes the live route summary on /debug/vars once per process.
var publishVars sync.Once

type TrackCmd struct {
	flags *Flags
	app   *waypoint.App

	// flags
	plain bool
}

// NewTrackCmd creates a new track command
func NewTrackCmd(flags *Flags, app *waypoint.App) *TrackCmd {
	return &TrackCmd{flags: flags, app: app}
}

// Register adds the track command to the application
func (cmd *TrackCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "track",
		Aliases:   []string{"t"},
		Usage:     "Follow the game journal and tick off stops as you arrive",
		UsageText: "waypoint track [--plain]",
		Description: `Tails the newest journal file and marks route stops visited as the
commander jumps into them. Progress is saved after every change.

In a terminal an interactive view is shown; stops can also be marked by hand
from there. With --plain, or when output is not a terminal, each change is
printed as a line instead.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "plain",
				Usage:       "print status changes as lines instead of the interactive view",
				Destination: &cmd.plain,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *TrackCmd) run(ctx context.Context, c *cli.Command) error {
	if err := cmd.app.LoadRoute(ctx); err != nil {
		return fmt.Errorf("load route: %w", err)
	}
	if cmd.app.State.Len() == 0 {
		return fmt.Errorf("no active route, run 'waypoint plan <systems.csv>' first")
	}

	ctx = logging.WithSessionID(ctx, cmd.app.SessionID)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopProfiler, err := startProfiler(ctx, cmd.flags.ProfilerPort)
	if err != nil {
		return fmt.Errorf("failed to start profiler: %w", err)
	}
	defer stopProfiler()

	publishVars.Do(func() {
		expvar.Publish("route", expvar.Func(func() any { return cmd.app.Summary() }))
	})

	cfg := cmd.app.Config
	tlog := logging.ForContext(ctx, "track")
	tlog.Info().
		Str("journal_dir", cfg.Journal.Dir).
		Str("commander", cfg.Journal.Commander).
		Int("stops", cmd.app.State.Len()).
		Msg("tracking route")

	var changes <-chan struct{}
	watcher, err := jsonfile.NewRouteWatcher(cfg.RouteFile())
	if err != nil {
		tlog.Warn().Err(err).Msg("route file not watched, marks from other commands apply on the next save")
	} else {
		defer func() { _ = watcher.Close() }()
		changes = watcher.Changes()
	}

	tailer := cmd.app.NewTailer()

	out := c.Root().Writer
	interactive := !cmd.plain && isTerminal(out)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	// Subscriptions must exist before the bus starts dispatching.
	var (
		program  *tea.Program
		deferred = &utils.DeferredWriter{MaxLines: transcriptLines}
	)
	if interactive {
		program = tea.NewProgram(tui.New(tui.Options{
			State:     cmd.app.State,
			Marker:    cmd.app.Tracker,
			Tailer:    tailer,
			JumpRange: cfg.Route.JumpRange,
			RoutePath: cfg.RouteFile(),
		}), tea.WithAltScreen(), tea.WithContext(gctx))
		tui.Forward(cmd.app.Bus, program)

		// keep a transcript to print once the alt screen is gone
		printChanges(cmd.app.Bus, deferred)
	} else {
		printChanges(cmd.app.Bus, out)
	}

	g.Go(func() error {
		cmd.app.Bus.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return cmd.app.Tracker.Run(gctx, changes)
	})
	g.Go(func() error {
		return tailer.Run(gctx)
	})

	if interactive {
		g.Go(func() error {
			defer cancel()
			_, err := program.Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("run tracker view: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	cmd.app.Bus.Drain()

	if interactive {
		if n := deferred.Dropped(); n > 0 {
			_, _ = fmt.Fprintln(out, styles.MutedStyle.Render(fmt.Sprintf("(%d earlier changes not shown)", n)))
		}
		if ferr := deferred.Flush(out); ferr != nil {
			tlog.Warn().Err(ferr).Msg("failed to print session transcript")
		}
	}

	s := cmd.app.Summary()
	_, _ = fmt.Fprintln(out, summaryLine(s))
	return err
}

// printChanges writes one line per status change to w.
func printChanges(bus *eventbus.EventBus, w io.Writer) {
	bus.SubscribeStopStatusChanged(func(e eventbus.StopStatusChangedPayload) {
		_, _ = fmt.Fprintf(w, "%s %s %s %s\n",
			time.Now().Format(time.TimeOnly),
			styles.StatusStyle(e.New).Render(styles.StatusIcon(e.New)),
			e.Name,
			styles.MutedStyle.Render(fmt.Sprintf("(%s, %s)", e.New, e.Source)),
		)
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
