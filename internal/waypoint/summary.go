package waypoint

import (
	"github.com/colonyops/waypoint/internal/core/route"
	"github.com/colonyops/waypoint/internal/core/tour"
)

// Summary describes how much of a route is left.
type Summary struct {
	route.Progress
	Remaining      float64 `json:"remaining_ly"`
	RemainingJumps int     `json:"remaining_jumps"`
	JumpRange      float64 `json:"jump_range,omitempty"`
}

// Summarize counts stops by status and measures the path through the
// unvisited stops, starting from the last stop dealt with before the next
// one. Jumps are only estimated for a positive jumpRange.
func Summarize(stops []route.Stop, jumpRange float64) Summary {
	s := Summary{Progress: route.ProgressOf(stops), JumpRange: jumpRange}

	next := -1
	for i, st := range stops {
		if st.Status == route.StatusUnvisited || st.Status == "" {
			next = i
			break
		}
	}
	if next < 0 {
		return s
	}

	remaining := make([]route.Stop, 0, len(stops)-next+1)
	if next > 0 {
		remaining = append(remaining, stops[next-1])
	}
	for _, st := range stops[next:] {
		if st.Status == route.StatusUnvisited || st.Status == "" {
			remaining = append(remaining, st)
		}
	}

	legs := tour.Legs(route.Points(remaining), false)
	for _, d := range legs {
		s.Remaining += d
	}
	if jumpRange > 0 {
		if est, err := tour.EstimateJumps(legs, jumpRange); err == nil {
			s.RemainingJumps = est.Jumps
		}
	}
	return s
}
