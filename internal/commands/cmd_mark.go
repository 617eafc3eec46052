package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/waypoint/internal/core/route"
	"github.com/colonyops/waypoint/internal/core/styles"
	"github.com/colonyops/waypoint/internal/waypoint"
)

type MarkCmd struct {
	flags *Flags
	app   *waypoint.App
}

// NewMarkCmd creates a new mark command
func NewMarkCmd(flags *Flags, app *waypoint.App) *MarkCmd {
	return &MarkCmd{flags: flags, app: app}
}

// Register adds the mark command to the application
func (cmd *MarkCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "mark",
		Usage:     "Set the status of a stop on the active route",
		UsageText: "waypoint mark <system> [visited|skipped|unvisited]",
		Description: `Marks a stop by name, ignoring case. The status defaults to visited.

Use 'next' as the system to mark the first stop not yet visited or skipped.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *MarkCmd) run(ctx context.Context, c *cli.Command) error {
	args := c.Args()
	if args.Len() < 1 || args.Len() > 2 {
		return fmt.Errorf("usage: %s", c.UsageText)
	}

	status := route.StatusVisited
	if args.Len() == 2 {
		s, err := route.ParseStatus(args.Get(1))
		if err != nil {
			return err
		}
		status = s
	}

	if err := cmd.app.LoadRoute(ctx); err != nil {
		return fmt.Errorf("load route: %w", err)
	}

	name := args.First()
	if route.Key(name) == "next" && !cmd.app.State.Contains(name) {
		name = cmd.app.State.Progress().Next
		if name == "" {
			return fmt.Errorf("every stop on the route is already visited or skipped")
		}
	}

	changed, err := cmd.app.Tracker.Mark(ctx, name, status)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	stop, _ := cmd.app.State.Get(name)
	if !changed {
		_, _ = fmt.Fprintf(out, "%s is already %s\n", stop.Name, status)
		return nil
	}

	_, _ = fmt.Fprintf(out, "%s %s\n",
		styles.StatusStyle(status).Render(styles.StatusIcon(status)+" "+string(status)),
		stop.Name)
	_, _ = fmt.Fprintln(out, summaryLine(cmd.app.Summary()))
	return nil
}
