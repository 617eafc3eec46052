package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/waypoint/internal/core/config"
	"github.com/colonyops/waypoint/internal/core/styles"
	"github.com/colonyops/waypoint/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "waypoint config validate [options]",
				Description: "Validates the configuration file, checking journal settings, CSV column names, and file paths.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []validationError          `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func (cmd *ConfigValidateCmd) run(_ context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	result := validationResult{
		Errors:   collectErrors(cfg.ValidateDeep(cmd.flags.ConfigPath)),
		Warnings: cfg.Warnings(),
	}
	result.Valid = len(result.Errors) == 0

	switch cmd.format {
	case "json":
		if err := iojson.Write(c.Root().Writer, result); err != nil {
			return err
		}
	case "text":
		cmd.outputText(c, result)
	default:
		return fmt.Errorf("unknown format %q (available: text, json)", cmd.format)
	}

	if !result.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *ConfigValidateCmd) outputText(c *cli.Command, result validationResult) {
	out := c.Root().Writer

	for _, warn := range result.Warnings {
		_, _ = fmt.Fprintf(out, "%s %s: %s\n", styles.WarningStyle.Render("!"), warn.Category, warn.Message)
		if warn.Item != "" {
			_, _ = fmt.Fprintf(out, "  Item: %s\n", warn.Item)
		}
	}

	for _, e := range result.Errors {
		_, _ = fmt.Fprintf(out, "%s %s: %s\n", styles.ErrorStyle.Render("✗"), e.Field, e.Message)
	}

	_, _ = fmt.Fprintln(out)
	if result.Valid {
		_, _ = fmt.Fprintf(out, "%s Configuration is valid\n", styles.VisitedStyle.Render(styles.IconVisited))
		return
	}
	_, _ = fmt.Fprintln(out, styles.ErrorStyle.Render(fmt.Sprintf("%d error(s) found", len(result.Errors))))
}

// collectErrors flattens a validation error into one entry per field.
func collectErrors(err error) []validationError {
	if err == nil {
		return nil
	}

	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		return []validationError{{Field: "config", Message: err.Error()}}
	}

	out := make([]validationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, validationError{Field: fe.Field, Message: fe.Err.Error()})
	}
	return out
}
