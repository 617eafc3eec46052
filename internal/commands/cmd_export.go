package commands

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/waypoint/internal/core/route"
	"github.com/colonyops/waypoint/internal/data/csvio"
	"github.com/colonyops/waypoint/internal/waypoint"
)

type ExportCmd struct {
	flags *Flags
	app   *waypoint.App
}

// NewExportCmd creates a new export command
func NewExportCmd(flags *Flags, app *waypoint.App) *ExportCmd {
	return &ExportCmd{flags: flags, app: app}
}

// Register adds the export command to the application
func (cmd *ExportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "export",
		Usage:     "Write the active route with its statuses as CSV",
		UsageText: "waypoint export [file.csv]",
		Description: `Writes the active route in visiting order using the configured column
names. The file can be passed back to 'waypoint plan' and keeps its statuses.
Without a file the CSV goes to standard output.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *ExportCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() > 1 {
		return fmt.Errorf("usage: %s", c.UsageText)
	}

	if err := cmd.app.LoadRoute(ctx); err != nil {
		return fmt.Errorf("load route: %w", err)
	}

	stops := cmd.app.State.Snapshot()
	if len(stops) == 0 {
		return fmt.Errorf("no active route to export")
	}

	sheet := csvio.Sheet{
		Stops: stops,
		Extra: csvio.ExtraColumns(stops),
		HasPayload: slices.ContainsFunc(stops, func(s route.Stop) bool {
			return len(s.Payload) > 0
		}),
	}

	cols := cmd.app.Config.CSV
	if path := c.Args().First(); path != "" {
		return csvio.WriteFile(path, sheet, cols)
	}
	return csvio.Write(c.Root().Writer, sheet, cols)
}
