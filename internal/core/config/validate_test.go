package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Config with all required fields set for testing.
func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Journal.Dir = t.TempDir()
	cfg.Route.JumpRange = 50
	return &cfg
}

func TestValidateDeep_ValidConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.CSV.Extra = []string{"Notes"}

	assert.NoError(t, cfg.ValidateDeep(""))
}

func TestValidateDeep_RunsBasicValidation(t *testing.T) {
	cfg := validConfig(t)
	cfg.DataDir = ""

	err := cfg.ValidateDeep("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data directory")
}

func TestValidateDeep_JournalDirIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "journal")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	cfg.Journal.Dir = file

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "journal.dir", fieldErrs[0].Field)
	assert.Contains(t, fieldErrs[0].Err.Error(), "not a directory")
}

func TestValidateDeep_ConfigFileIsDirectory(t *testing.T) {
	cfg := validConfig(t)

	err := cfg.ValidateDeep(t.TempDir())

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "config_file", fieldErrs[0].Field)
}

func TestValidateDeep_Events(t *testing.T) {
	cfg := validConfig(t)
	cfg.Journal.Events = []string{"FSDJump", " ", "FSDJump"}

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 2)
	assert.Equal(t, "journal.events[1]", fieldErrs[0].Field)
	assert.Contains(t, fieldErrs[1].Err.Error(), "duplicate")
}

func TestValidateDeep_PollLongerThanLocate(t *testing.T) {
	cfg := validConfig(t)
	cfg.Journal.PollInterval = cfg.Journal.LocateInterval * 2

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "journal.poll_interval", fieldErrs[0].Field)
}

func TestValidateDeep_Columns(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "empty name", mutate: func(c *Config) { c.CSV.Name = "" }, wantField: "csv.name"},
		{name: "x equals y", mutate: func(c *Config) { c.CSV.Y = "x" }, wantField: "csv.y"},
		{name: "extra shadows payload", mutate: func(c *Config) { c.CSV.Extra = []string{"Body Name"} }, wantField: "csv.extra[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.ValidateDeep("")

			var fieldErrs criterio.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			require.Len(t, fieldErrs, 1)
			assert.Equal(t, tt.wantField, fieldErrs[0].Field)
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := validConfig(t)
	assert.Empty(t, cfg.Warnings())

	cfg.Journal.Dir = filepath.Join(t.TempDir(), "missing")
	cfg.Route.JumpRange = 0
	cfg.Route.RoundTrip = false

	var items []string
	for _, w := range cfg.Warnings() {
		items = append(items, w.Category+"."+w.Item)
	}
	assert.Equal(t, []string{"Journal.dir", "Route.jump_range", "Route.round_trip"}, items)
}
