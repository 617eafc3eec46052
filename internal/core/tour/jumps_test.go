package tour

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/waypoint/internal/core/fault"
	"github.com/colonyops/waypoint/internal/core/geo"
)

func TestEstimateJumps(t *testing.T) {
	tests := []struct {
		name      string
		legs      []float64
		jumpRange float64
		want      int
	}{
		{name: "empty", legs: nil, jumpRange: 10, want: 0},
		{name: "zero leg", legs: []float64{0}, jumpRange: 10, want: 0},
		{name: "exact multiple", legs: []float64{30}, jumpRange: 10, want: 3},
		{name: "just over", legs: []float64{30.0001}, jumpRange: 10, want: 4},
		{name: "under range", legs: []float64{9.9}, jumpRange: 10, want: 1},
		{name: "square perimeter", legs: []float64{10, 10, 10, 10}, jumpRange: 15, want: 4},
		{name: "mixed", legs: []float64{5, 25, 0, 100}, jumpRange: 20, want: 1 + 2 + 0 + 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EstimateJumps(tt.legs, tt.jumpRange)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Jumps)
		})
	}
}

func TestEstimateJumps_SingleLegIsCeil(t *testing.T) {
	for _, d := range []float64{0, 0.5, 1, 14.99, 15, 15.01, 44.9, 1000} {
		got, err := EstimateJumps([]float64{d}, 15)
		require.NoError(t, err)
		assert.Equal(t, int(math.Ceil(d/15)), got.Jumps, "leg %v", d)
	}
}

func TestEstimateJumps_Monotonic(t *testing.T) {
	legs := []float64{3, 17, 42, 8}
	base, err := EstimateJumps(legs, 10)
	require.NoError(t, err)

	for i := range legs {
		for _, grow := range []float64{0.001, 1, 7, 50} {
			grown := append([]float64(nil), legs...)
			grown[i] += grow

			got, err := EstimateJumps(grown, 10)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got.Jumps, base.Jumps, "leg %d grown by %v", i, grow)
		}
	}
}

func TestEstimateJumps_AverageJump(t *testing.T) {
	got, err := EstimateJumps([]float64{10, 10, 10, 10}, 15)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, got.Length, 1e-12)
	assert.InDelta(t, 10.0, got.AverageJump, 1e-12)

	// no jumps falls back to the range
	got, err = EstimateJumps(nil, 15)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, got.AverageJump, 1e-12)
}

func TestEstimateJumps_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		legs      []float64
		jumpRange float64
	}{
		{name: "zero range", legs: []float64{1}, jumpRange: 0},
		{name: "negative range", legs: []float64{1}, jumpRange: -5},
		{name: "nan range", legs: []float64{1}, jumpRange: math.NaN()},
		{name: "negative leg", legs: []float64{1, -2}, jumpRange: 10},
		{name: "inf leg", legs: []float64{math.Inf(1)}, jumpRange: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EstimateJumps(tt.legs, tt.jumpRange)
			assert.ErrorIs(t, err, fault.ErrInvalidInput)
		})
	}
}

func TestLegs(t *testing.T) {
	points := []geo.Point3D{{}, {X: 10}, {X: 10, Y: 10}, {Y: 10}}

	assert.Equal(t, []float64{10, 10, 10}, Legs(points, false))
	assert.Equal(t, []float64{10, 10, 10, 10}, Legs(points, true))
	assert.Nil(t, Legs(points[:1], true))
}
