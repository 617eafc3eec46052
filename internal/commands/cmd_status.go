package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/waypoint/internal/core/geo"
	"github.com/colonyops/waypoint/internal/core/route"
	"github.com/colonyops/waypoint/internal/core/styles"
	"github.com/colonyops/waypoint/internal/waypoint"
	"github.com/colonyops/waypoint/pkg/iojson"
)

type StatusCmd struct {
	flags *Flags
	app   *waypoint.App

	// flags
	remaining  bool
	jsonOutput bool
}

// NewStatusCmd creates a new status command
func NewStatusCmd(flags *Flags, app *waypoint.App) *StatusCmd {
	return &StatusCmd{flags: flags, app: app}
}

// Register adds the status command to the application
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Aliases:   []string{"st"},
		Usage:     "Show progress on the active route",
		UsageText: "waypoint status [--remaining] [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "remaining",
				Usage:       "only list stops not yet visited or skipped",
				Destination: &cmd.remaining,
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

// statusResult is the JSON output format for waypoint status --json.
type statusResult struct {
	waypoint.Summary
	Route []route.Stop `json:"route"`
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	if err := cmd.app.LoadRoute(ctx); err != nil {
		return fmt.Errorf("load route: %w", err)
	}

	stops := cmd.app.State.Snapshot()
	summary := cmd.app.Summary()
	out := c.Root().Writer

	if cmd.jsonOutput {
		list := stops
		if cmd.remaining {
			list = unvisited(stops)
		}
		return iojson.Write(out, statusResult{Summary: summary, Route: list})
	}

	if len(stops) == 0 {
		fmt.Fprintln(os.Stderr, "No active route, run 'waypoint plan <systems.csv>' first")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tSYSTEM\tSTATUS\tLEG\tPAYLOAD")
	for i, s := range stops {
		if cmd.remaining && s.Status != route.StatusUnvisited {
			continue
		}
		leg := "-"
		if i > 0 {
			leg = humanize.CommafWithDigits(geo.Distance(stops[i-1].Coords, s.Coords), 1)
		}
		// tabwriter counts bytes, style the status after padding
		status := styles.StatusStyle(s.Status).Render(fmt.Sprintf("%-9s", s.Status))
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, s.Name, status, leg, strings.Join(s.Payload, ", "))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, summaryLine(summary))
	if summary.Next != "" {
		_, _ = fmt.Fprintf(out, "next: %s\n", styles.NextStopStyle.Render(summary.Next))
	}
	return nil
}

func summaryLine(s waypoint.Summary) string {
	parts := []string{
		fmt.Sprintf("%d/%d visited", s.Visited, s.Total),
		fmt.Sprintf("%d skipped", s.Skipped),
		fmt.Sprintf("%s ly to go", humanize.CommafWithDigits(s.Remaining, 1)),
	}
	if s.JumpRange > 0 {
		parts = append(parts, fmt.Sprintf("~%s jumps", humanize.Comma(int64(s.RemainingJumps))))
	}
	return strings.Join(parts, styles.DividerStyle.Render(" "+styles.IconDot+" "))
}

func unvisited(stops []route.Stop) []route.Stop {
	out := make([]route.Stop, 0, len(stops))
	for _, s := range stops {
		if s.Status == route.StatusUnvisited {
			out = append(out, s)
		}
	}
	return out
}
