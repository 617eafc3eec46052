package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/waypoint/internal/core/history"
	"github.com/colonyops/waypoint/internal/waypoint"
	"github.com/colonyops/waypoint/pkg/iojson"
)

type HistoryCmd struct {
	flags *Flags
	app   *waypoint.App

	// flags
	system     string
	session    string
	onRoute    bool
	limit      int
	clear      bool
	jsonOutput bool
}

// NewHistoryCmd creates a new history command
func NewHistoryCmd(flags *Flags, app *waypoint.App) *HistoryCmd {
	return &HistoryCmd{flags: flags, app: app}
}

// Register adds the history command to the application
func (cmd *HistoryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "history",
		Usage:     "List systems arrived in while tracking",
		UsageText: "waypoint history [options]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "system",
				Usage:       "only arrivals in this system",
				Destination: &cmd.system,
			},
			&cli.StringFlag{
				Name:        "session",
				Usage:       "only arrivals recorded by this tracking session",
				Destination: &cmd.session,
			},
			&cli.BoolFlag{
				Name:        "on-route",
				Usage:       "only arrivals at route stops",
				Destination: &cmd.onRoute,
			},
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "maximum number of arrivals to list (0 for all)",
				Value:       25,
				Destination: &cmd.limit,
			},
			&cli.BoolFlag{
				Name:        "clear",
				Usage:       "delete the recorded history",
				Destination: &cmd.clear,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *HistoryCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.clear {
		if err := cmd.app.History.Clear(ctx); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		fmt.Fprintln(os.Stderr, "History cleared")
		return nil
	}

	visits, err := cmd.app.History.List(ctx, history.Filter{
		System:    cmd.system,
		SessionID: cmd.session,
		OnRoute:   cmd.onRoute,
		Limit:     cmd.limit,
	})
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, v := range visits {
			if err := iojson.WriteLine(out, v); err != nil {
				return fmt.Errorf("encode visit: %w", err)
			}
		}
		return nil
	}

	if len(visits) == 0 {
		fmt.Fprintln(os.Stderr, "No arrivals recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ARRIVED\tSYSTEM\tROUTE\tSESSION")
	for _, v := range visits {
		onRoute := ""
		if v.OnRoute {
			onRoute = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", humanize.Time(v.ArrivedAt), v.System, onRoute, shortID(v.SessionID))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
