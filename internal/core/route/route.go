// Package route defines the stops of a planned route, their visitation status,
// and the mutex-guarded State that the planner, the journal tracker and manual
// edits share.
package route

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/colonyops/waypoint/internal/core/geo"
)

// Status is the visitation state of a stop.
type Status string

const (
	StatusUnvisited Status = "unvisited"
	StatusVisited   Status = "visited"
	StatusSkipped   Status = "skipped"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusUnvisited, StatusVisited, StatusSkipped:
		return true
	default:
		return false
	}
}

// ParseStatus parses a status name case-insensitively. An empty string parses
// as StatusUnvisited.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st == "" {
		return StatusUnvisited, nil
	}
	if !st.IsValid() {
		return "", fmt.Errorf("unknown status %q (want unvisited, visited or skipped)", s)
	}
	return st, nil
}

// Stop is one star system on a route. Name is the identity of the stop.
type Stop struct {
	Name    string      `json:"name"`
	Coords  geo.Point3D `json:"coords"`
	Status  Status      `json:"status"`
	Payload []string    `json:"payload,omitempty"` // points of interest at this stop

	// Extra carries input columns that waypoint does not interpret, keyed by
	// column name, so they survive into the output file.
	Extra map[string]string `json:"extra,omitempty"`
}

// Clone returns a copy of s that shares no memory with it.
func (s Stop) Clone() Stop {
	s.Payload = slices.Clone(s.Payload)
	s.Extra = maps.Clone(s.Extra)
	return s
}

// Key normalizes a system name for identity comparisons: surrounding
// whitespace is trimmed and case is folded.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Aggregate merges stops that share a Key. The first occurrence keeps its
// position, name, coordinates, status and extra columns; payload entries
// from later occurrences are appended without duplicates.
func Aggregate(stops []Stop) []Stop {
	out := make([]Stop, 0, len(stops))
	index := make(map[string]int, len(stops))

	for _, s := range stops {
		k := Key(s.Name)
		i, ok := index[k]
		if !ok {
			s = s.Clone()
			s.Payload = appendUnique(nil, s.Payload...)
			index[k] = len(out)
			out = append(out, s)
			continue
		}
		out[i].Payload = appendUnique(out[i].Payload, s.Payload...)
	}

	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(dst, v) {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}

// Points returns the coordinates of stops in order.
func Points(stops []Stop) []geo.Point3D {
	points := make([]geo.Point3D, len(stops))
	for i, s := range stops {
		points[i] = s.Coords
	}
	return points
}
