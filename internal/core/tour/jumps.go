package tour

import (
	"math"

	"github.com/colonyops/waypoint/internal/core/fault"
	"github.com/colonyops/waypoint/internal/core/geo"
)

// JumpEstimate is the jump cost of a route.
type JumpEstimate struct {
	Jumps       int     // Σ ceil(leg / range)
	Length      float64 // Σ legs
	AverageJump float64 // Length / Jumps, or the range when there are no jumps
}

// EstimateJumps converts leg distances into a total jump count for a ship with
// the given jump range. A zero-length leg costs no jumps.
func EstimateJumps(legs []float64, jumpRange float64) (JumpEstimate, error) {
	if math.IsNaN(jumpRange) || math.IsInf(jumpRange, 0) || jumpRange <= 0 {
		return JumpEstimate{}, fault.Invalid("jump range must be a positive number, got %v", jumpRange)
	}

	var est JumpEstimate
	for i, d := range legs {
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return JumpEstimate{}, fault.Invalid("leg %d has invalid distance %v", i, d)
		}
		est.Length += d
		est.Jumps += int(math.Ceil(d / jumpRange))
	}

	est.AverageJump = jumpRange
	if est.Jumps > 0 {
		est.AverageJump = est.Length / float64(est.Jumps)
	}

	return est, nil
}

// Legs returns the distances between consecutive points. When closed is true
// and there are at least two points, the leg from the last point back to the
// first is appended.
func Legs(points []geo.Point3D, closed bool) []float64 {
	if len(points) < 2 {
		return nil
	}
	legs := make([]float64, 0, len(points))
	for i := 1; i < len(points); i++ {
		legs = append(legs, geo.Distance(points[i-1], points[i]))
	}
	if closed {
		legs = append(legs, geo.Distance(points[len(points)-1], points[0]))
	}
	return legs
}
