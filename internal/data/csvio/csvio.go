// Package csvio reads route sources and writes optimized routes as CSV.
package csvio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/colonyops/waypoint/internal/core/fault"
	"github.com/colonyops/waypoint/internal/core/geo"
	"github.com/colonyops/waypoint/internal/core/route"
)

// Columns names the CSV headers waypoint interprets. Header matching is
// case-insensitive and ignores surrounding whitespace.
type Columns struct {
	Name    string   `yaml:"name"`
	X       string   `yaml:"x"`
	Y       string   `yaml:"y"`
	Z       string   `yaml:"z"`
	Payload string   `yaml:"payload"` // optional, aggregated per system
	Status  string   `yaml:"status"`  // optional, read back from earlier output
	Extra   []string `yaml:"extra"`   // carried through; empty carries every other column
}

// DefaultColumns matches the export format of common route planning tools.
func DefaultColumns() Columns {
	return Columns{
		Name:    "System Name",
		X:       "X",
		Y:       "Y",
		Z:       "Z",
		Payload: "Body Name",
		Status:  "Status",
	}
}

// Sheet is a parsed route source.
type Sheet struct {
	Stops []route.Stop
	// Extra lists carried-through columns in output order.
	Extra []string
	// HasPayload is set when any stop has payload entries.
	HasPayload bool
}

// ReadFile opens path and calls Read.
func ReadFile(path string, cols Columns) (Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sheet{}, fmt.Errorf("open route source: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet, err := Read(f, cols)
	if err != nil {
		return Sheet{}, fmt.Errorf("%s: %w", path, err)
	}
	return sheet, nil
}

// Read parses a route source. Rows sharing a system name are merged with
// route.Aggregate. Missing required columns, empty names and coordinates that
// are not finite numbers fail with fault.ErrInvalidInput.
func Read(r io.Reader, cols Columns) (Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Sheet{}, fault.Invalid("route source is empty")
	}
	if err != nil {
		return Sheet{}, fault.Invalid("read header: %v", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idx := func(name string) int {
		if name == "" {
			return -1
		}
		return slices.IndexFunc(header, func(h string) bool {
			return strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name))
		})
	}

	nameIdx, xIdx, yIdx, zIdx := idx(cols.Name), idx(cols.X), idx(cols.Y), idx(cols.Z)
	required := []struct {
		col string
		idx int
	}{{cols.Name, nameIdx}, {cols.X, xIdx}, {cols.Y, yIdx}, {cols.Z, zIdx}}
	for _, r := range required {
		if r.idx < 0 {
			return Sheet{}, fault.Invalid("missing required column %q (have %s)", r.col, strings.Join(header, ", "))
		}
	}
	payloadIdx, statusIdx := idx(cols.Payload), idx(cols.Status)

	known := []int{nameIdx, xIdx, yIdx, zIdx, payloadIdx, statusIdx}
	var extra []string
	var extraIdx []int
	if len(cols.Extra) > 0 {
		for _, name := range cols.Extra {
			i := idx(name)
			if i < 0 {
				return Sheet{}, fault.Invalid("missing extra column %q", name)
			}
			extra = append(extra, strings.TrimSpace(header[i]))
			extraIdx = append(extraIdx, i)
		}
	} else {
		for i, h := range header {
			if slices.Contains(known, i) || strings.TrimSpace(h) == "" {
				continue
			}
			extra = append(extra, strings.TrimSpace(h))
			extraIdx = append(extraIdx, i)
		}
	}

	var stops []route.Stop
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Sheet{}, fault.Invalid("%v", err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(rec) {
			continue
		}

		name := strings.TrimSpace(field(rec, nameIdx))
		if name == "" {
			return Sheet{}, fault.Invalid("line %d: empty %q", line, cols.Name)
		}

		var coords [3]float64
		for k, i := range []int{xIdx, yIdx, zIdx} {
			raw := strings.TrimSpace(field(rec, i))
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return Sheet{}, fault.Invalid("line %d: %s coordinate %q of %s is not a finite number",
					line, []string{"X", "Y", "Z"}[k], raw, name)
			}
			coords[k] = v
		}

		status := route.StatusUnvisited
		if statusIdx >= 0 {
			status, err = route.ParseStatus(field(rec, statusIdx))
			if err != nil {
				return Sheet{}, fault.Invalid("line %d: %v", line, err)
			}
		}

		stop := route.Stop{
			Name:    name,
			Coords:  geo.FromArray(coords),
			Status:  status,
			Payload: parsePayload(field(rec, payloadIdx)),
		}
		if len(extraIdx) > 0 {
			stop.Extra = make(map[string]string, len(extraIdx))
			for k, i := range extraIdx {
				stop.Extra[extra[k]] = field(rec, i)
			}
		}
		stops = append(stops, stop)
	}

	stops = route.Aggregate(stops)
	return Sheet{
		Stops:      stops,
		Extra:      extra,
		HasPayload: slices.ContainsFunc(stops, func(s route.Stop) bool { return len(s.Payload) > 0 }),
	}, nil
}

// WriteFile creates path and calls Write.
func WriteFile(path string, sheet Sheet, cols Columns) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create route output: %w", err)
	}
	if err := Write(f, sheet, cols); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write emits name, coordinates, extra columns and a Status column, plus the
// payload column holding a JSON array when HasPayload is set.
func Write(w io.Writer, sheet Sheet, cols Columns) error {
	statusCol := cols.Status
	if statusCol == "" {
		statusCol = "Status"
	}
	payloadCol := cols.Payload
	if payloadCol == "" {
		payloadCol = "Payload"
	}

	header := []string{cols.Name, cols.X, cols.Y, cols.Z}
	header = append(header, sheet.Extra...)
	header = append(header, statusCol)
	if sheet.HasPayload {
		header = append(header, payloadCol)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rec := make([]string, 0, len(header))
	for _, s := range sheet.Stops {
		rec = rec[:0]
		rec = append(rec,
			s.Name,
			formatCoord(s.Coords.X),
			formatCoord(s.Coords.Y),
			formatCoord(s.Coords.Z),
		)
		for _, col := range sheet.Extra {
			rec = append(rec, s.Extra[col])
		}
		status := s.Status
		if status == "" {
			status = route.StatusUnvisited
		}
		rec = append(rec, string(status))
		if sheet.HasPayload {
			rec = append(rec, formatPayload(s.Payload))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", s.Name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExtraColumns returns the sorted union of Extra keys across stops, for
// sheets rebuilt from persisted routes.
func ExtraColumns(stops []route.Stop) []string {
	var out []string
	for _, s := range stops {
		for k := range s.Extra {
			if !slices.Contains(out, k) {
				out = append(out, k)
			}
		}
	}
	slices.Sort(out)
	return out
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// parsePayload accepts a plain value or a JSON array written by Write.
func parsePayload(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return list
		}
	}
	return []string{raw}
}

func formatPayload(p []string) string {
	if len(p) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(p)
	return string(data)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
