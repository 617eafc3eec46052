package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/waypoint/internal/core/logging"
	"github.com/colonyops/waypoint/internal/core/route"
	"github.com/colonyops/waypoint/internal/core/styles"
	"github.com/colonyops/waypoint/internal/data/csvio"
	"github.com/colonyops/waypoint/internal/tui"
	"github.com/colonyops/waypoint/internal/waypoint"
	"github.com/colonyops/waypoint/pkg/iojson"
)

var errPlanInterrupted = errors.New("planning interrupted")

type PlanCmd struct {
	flags *Flags
	app   *waypoint.App

	// flags
	jumpRange  float64
	start      string
	roundTrip  bool
	output     string
	fresh      bool
	dryRun     bool
	jsonOutput bool
}

// NewPlanCmd creates a new plan command
func NewPlanCmd(flags *Flags, app *waypoint.App) *PlanCmd {
	return &PlanCmd{flags: flags, app: app}
}

// Register adds the plan command to the application
func (cmd *PlanCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "plan",
		Usage:     "Optimize the visiting order of a list of systems",
		UsageText: "waypoint plan [options] <systems.csv>",
		Description: `Reads systems and their galactic coordinates from a CSV file, orders them
to keep the total distance short and writes the ordered route next to the
input as route_<stops>-stops_<jumps>-jumps_<range>ly.csv.

The ordered route becomes the active route for 'waypoint track'. Statuses of
systems already visited or skipped on the active route carry over unless
--fresh is given.`,
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:        "range",
				Aliases:     []string{"r"},
				Usage:       "ship jump range in light years (defaults to route.jump_range)",
				Destination: &cmd.jumpRange,
			},
			&cli.StringFlag{
				Name:        "start",
				Aliases:     []string{"s"},
				Usage:       "system the route must begin at",
				Destination: &cmd.start,
			},
			&cli.BoolFlag{
				Name:        "round-trip",
				Usage:       "return to the first system at the end",
				Value:       true,
				Destination: &cmd.roundTrip,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output file or directory",
				Destination: &cmd.output,
			},
			&cli.BoolFlag{
				Name:        "fresh",
				Usage:       "do not carry statuses over from the active route",
				Destination: &cmd.fresh,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "print the plan without writing files or changing the active route",
				Destination: &cmd.dryRun,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

// planResult is the JSON output format for waypoint plan --json.
type planResult struct {
	Stops        int          `json:"stops"`
	Jumps        int          `json:"jumps"`
	Length       float64      `json:"length_ly"`
	AverageJump  float64      `json:"average_jump_ly"`
	JumpRange    float64      `json:"jump_range"`
	RoundTrip    bool         `json:"round_trip"`
	Start        string       `json:"start,omitempty"`
	UnknownStart string       `json:"unknown_start,omitempty"`
	Truncated    bool         `json:"truncated"`
	ElapsedMS    int64        `json:"elapsed_ms"`
	Output       string       `json:"output,omitempty"`
	Route        []route.Stop `json:"route"`
}

func (cmd *PlanCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected one CSV file, got %d arguments", c.Args().Len())
	}
	input := c.Args().First()
	cfg := cmd.app.Config

	req := waypoint.PlanRequest{
		JumpRange: cfg.Route.JumpRange,
		Start:     cfg.Route.Start,
		RoundTrip: cfg.Route.RoundTrip,
	}
	if c.IsSet("range") {
		req.JumpRange = cmd.jumpRange
	}
	if c.IsSet("start") {
		req.Start = cmd.start
	}
	if c.IsSet("round-trip") {
		req.RoundTrip = cmd.roundTrip
	}
	if req.JumpRange <= 0 {
		return fmt.Errorf("jump range is required: pass --range or set route.jump_range")
	}

	sheet, err := csvio.ReadFile(input, cfg.CSV)
	if err != nil {
		return err
	}
	req.Stops = sheet.Stops

	stopProfiler, err := startProfiler(ctx, cmd.flags.ProfilerPort)
	if err != nil {
		return err
	}
	defer stopProfiler()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	plan, err := cmd.optimize(ctx, req, c.Root().Writer)
	if err != nil {
		return fmt.Errorf("plan route: %w", err)
	}

	var output string
	if !cmd.dryRun {
		output, err = cmd.outputPath(input, plan)
		if err != nil {
			return err
		}
		ctx = logging.WithRoute(ctx, filepath.Base(output))
		applied, err := cmd.activate(ctx, plan)
		if err != nil {
			return err
		}
		sheet.Stops = applied
		if err := csvio.WriteFile(output, sheet, cfg.CSV); err != nil {
			return err
		}
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		return iojson.Write(out, planResult{
			Stops:        len(plan.Stops),
			Jumps:        plan.Estimate.Jumps,
			Length:       plan.Estimate.Length,
			AverageJump:  plan.Estimate.AverageJump,
			JumpRange:    plan.JumpRange,
			RoundTrip:    plan.RoundTrip,
			Start:        plan.Start,
			UnknownStart: plan.UnknownStart,
			Truncated:    plan.Truncated,
			ElapsedMS:    plan.Elapsed.Milliseconds(),
			Output:       output,
			Route:        plan.Stops,
		})
	}

	kind := "open route"
	if plan.RoundTrip {
		kind = "round trip"
	}

	_, _ = fmt.Fprintln(out, styles.CommandHeaderStyle.Render("Route optimized"))
	_, _ = fmt.Fprintf(out, "  %-10s %d\n", "stops", len(plan.Stops))
	_, _ = fmt.Fprintf(out, "  %-10s %s (avg %s ly)\n", "jumps",
		humanize.Comma(int64(plan.Estimate.Jumps)), humanize.CommafWithDigits(plan.Estimate.AverageJump, 1))
	_, _ = fmt.Fprintf(out, "  %-10s %s ly %s\n", "distance", humanize.CommafWithDigits(plan.Estimate.Length, 1), kind)
	if len(plan.Stops) > 0 {
		_, _ = fmt.Fprintf(out, "  %-10s %s\n", "start", plan.Stops[0].Name)
	}
	if output != "" {
		_, _ = fmt.Fprintf(out, "  %-10s %s\n", "written", output)
	}
	_, _ = fmt.Fprintf(out, "  %-10s %s\n", "took", plan.Elapsed.Round(time.Millisecond))

	if plan.UnknownStart != "" {
		fmt.Fprintln(os.Stderr, styles.WarningStyle.Render(
			fmt.Sprintf("start system %q is not in the route, the route starts wherever is shortest", plan.UnknownStart)))
	}
	if plan.Truncated {
		fmt.Fprintln(os.Stderr, styles.WarningStyle.Render(
			"search stopped at its time or iteration limit, the route may be longer than necessary"))
	}

	return nil
}

// optimize runs the planner. In a terminal the plan runs in the background
// behind a spinner that q or ctrl+c cancels.
func (cmd *PlanCmd) optimize(ctx context.Context, req waypoint.PlanRequest, out io.Writer) (waypoint.Plan, error) {
	if cmd.jsonOutput || !isTerminal(out) {
		return cmd.app.Planner.Plan(ctx, req)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		plan     waypoint.Plan
		planErr  error
		finished = make(chan struct{})
	)

	program := tea.NewProgram(
		tui.NewPlanning(fmt.Sprintf("optimizing %d stops", len(req.Stops))),
		tea.WithOutput(out),
		tea.WithContext(ctx),
	)

	err := cmd.app.Planner.Start(ctx, req, func(p waypoint.Plan, err error) {
		plan, planErr = p, err
		close(finished)
		program.Send(tui.PlanDone{})
	})
	if err != nil {
		return waypoint.Plan{}, err
	}

	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		plog := logging.ForContext(ctx, "plan")
		plog.Warn().Err(err).Msg("progress view failed")
	}

	interrupted := ctx.Err() != nil
	if m, ok := final.(tui.Planning); ok && m.Interrupted() {
		interrupted = true
	}
	if interrupted {
		cancel()
	}

	<-finished
	if interrupted && planErr == nil {
		return waypoint.Plan{}, errPlanInterrupted
	}
	return plan, planErr
}

// activate makes plan the active route, persists it and returns the stops
// with their carried-over statuses.
func (cmd *PlanCmd) activate(ctx context.Context, plan waypoint.Plan) ([]route.Stop, error) {
	if cmd.fresh {
		cmd.app.State.Clear()
	} else if err := cmd.app.LoadRoute(ctx); err != nil {
		return nil, fmt.Errorf("load active route: %w", err)
	}

	applied, err := cmd.app.Planner.Apply(plan)
	if err != nil {
		return nil, err
	}
	if err := cmd.app.SaveRoute(ctx); err != nil {
		return nil, err
	}
	return applied, nil
}

// outputPath resolves --output, route.output_dir or the input directory.
func (cmd *PlanCmd) outputPath(input string, plan waypoint.Plan) (string, error) {
	dir := cmd.app.Config.Route.OutputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}

	if cmd.output != "" {
		info, err := os.Stat(cmd.output)
		if err != nil || !info.IsDir() {
			if err := os.MkdirAll(filepath.Dir(cmd.output), 0o755); err != nil {
				return "", fmt.Errorf("create output dir: %w", err)
			}
			return cmd.output, nil
		}
		dir = cmd.output
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return filepath.Join(dir, plan.OutputName()), nil
}
