package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration including
// file accessibility and column mapping. The configPath argument specifies the
// config file location to validate (empty string skips config file check).
// This calls Validate() first for basic structural validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateJournal(),
		c.validateColumns(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Journal.Dir == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Journal",
			Item:     "dir",
			Message:  "no journal directory configured, tracking is unavailable",
		})
	} else if _, err := os.Stat(c.Journal.Dir); os.IsNotExist(err) {
		warnings = append(warnings, ValidationWarning{
			Category: "Journal",
			Item:     "dir",
			Message:  fmt.Sprintf("%s does not exist yet, the tracker will wait for it", c.Journal.Dir),
		})
	}

	if c.Route.JumpRange == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Route",
			Item:     "jump_range",
			Message:  "not set, `waypoint plan` requires --range",
		})
	}

	if !c.Route.RoundTrip && c.Route.Start == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Route",
			Item:     "round_trip",
			Message:  "open routes without a start system may begin anywhere on the tour",
		})
	}

	return warnings
}

// validateFileAccess checks the config file, data directory and journal directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		criterio.Run("journal.dir", c.Journal.Dir, isDirectoryOrNotExist),
		criterio.Run("route.output_dir", c.Route.OutputDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func (c *Config) validateJournal() error {
	var errs criterio.FieldErrorsBuilder

	seen := make(map[string]bool, len(c.Journal.Events))
	for i, e := range c.Journal.Events {
		name := strings.TrimSpace(e)
		field := fmt.Sprintf("journal.events[%d]", i)
		switch {
		case name == "":
			errs = errs.Append(field, fmt.Errorf("event name cannot be empty"))
		case seen[name]:
			errs = errs.Append(field, fmt.Errorf("duplicate event %q", name))
		}
		seen[name] = true
	}

	if c.Journal.PollInterval > c.Journal.LocateInterval {
		errs = errs.Append("journal.poll_interval",
			fmt.Errorf("%s is longer than locate_interval %s", c.Journal.PollInterval, c.Journal.LocateInterval))
	}

	return errs.ToError()
}

// validateColumns checks that the CSV column mapping is usable.
func (c *Config) validateColumns() error {
	var errs criterio.FieldErrorsBuilder

	seen := make(map[string]string)
	check := func(field, col string, required bool) {
		key := strings.ToLower(strings.TrimSpace(col))
		if key == "" {
			if required {
				errs = errs.Append(field, fmt.Errorf("column name cannot be empty"))
			}
			return
		}
		if other, ok := seen[key]; ok {
			errs = errs.Append(field, fmt.Errorf("column %q is already mapped by %s", col, other))
			return
		}
		seen[key] = field
	}

	check("csv.name", c.CSV.Name, true)
	check("csv.x", c.CSV.X, true)
	check("csv.y", c.CSV.Y, true)
	check("csv.z", c.CSV.Z, true)
	check("csv.payload", c.CSV.Payload, false)
	check("csv.status", c.CSV.Status, false)
	for i, col := range c.CSV.Extra {
		check(fmt.Sprintf("csv.extra[%d]", i), col, true)
	}

	return errs.ToError()
}
