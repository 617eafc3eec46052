package waypoint

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/waypoint/internal/core/eventbus"
	"github.com/colonyops/waypoint/internal/core/eventbus/testbus"
	"github.com/colonyops/waypoint/internal/core/fault"
	"github.com/colonyops/waypoint/internal/core/geo"
	"github.com/colonyops/waypoint/internal/core/route"
	"github.com/colonyops/waypoint/internal/core/tour"
)

// squareStops lists the corners of a 10 ly square in crossing order.
func squareStops() []route.Stop {
	return []route.Stop{
		{Name: "A", Coords: geo.Point3D{X: 0, Y: 0}},
		{Name: "C", Coords: geo.Point3D{X: 10, Y: 10}},
		{Name: "B", Coords: geo.Point3D{X: 10, Y: 0}},
		{Name: "D", Coords: geo.Point3D{X: 0, Y: 10}},
	}
}

func newTestPlanner(t *testing.T) (*Planner, *route.State, *testbus.Bus) {
	t.Helper()

	tb := testbus.New(t)
	state := route.NewState()
	p := NewPlanner(state, tb.EventBus, PlannerOptions{Workers: 2}, zerolog.Nop())
	t.Cleanup(p.Close)
	return p, state, tb
}

func names(stops []route.Stop) []string {
	out := make([]string, len(stops))
	for i, s := range stops {
		out[i] = s.Name
	}
	return out
}

func TestPlanner_RoundTripSquare(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	plan, err := p.Plan(context.Background(), PlanRequest{
		Stops:     squareStops(),
		JumpRange: 10,
		RoundTrip: true,
	})
	require.NoError(t, err)

	require.Len(t, plan.Stops, 4)
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, names(plan.Stops))
	assert.Len(t, plan.Legs, 4)
	assert.InDelta(t, 40.0, plan.Estimate.Length, 1e-9)
	assert.Equal(t, 4, plan.Estimate.Jumps)
	assert.True(t, plan.RoundTrip)
	assert.Empty(t, plan.UnknownStart)
}

func TestPlanner_OpenRouteIsShortPath(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	stops := []route.Stop{
		{Name: "Near", Coords: geo.Point3D{X: 0}},
		{Name: "Far", Coords: geo.Point3D{X: 100}},
		{Name: "Mid", Coords: geo.Point3D{X: 5}},
	}
	plan, err := p.Plan(context.Background(), PlanRequest{Stops: stops, JumpRange: 50})
	require.NoError(t, err)

	require.Len(t, plan.Legs, 2)
	assert.InDelta(t, 100.0, plan.Estimate.Length, 1e-9)
	order := names(plan.Stops)
	assert.Equal(t, "Mid", order[1], "middle stop stays between the ends")
}

func TestPlanner_FixedStart(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	plan, err := p.Plan(context.Background(), PlanRequest{
		Stops:     squareStops(),
		Start:     "  b ",
		JumpRange: 10,
		RoundTrip: true,
	})
	require.NoError(t, err)

	require.Len(t, plan.Stops, 4)
	assert.Equal(t, "B", plan.Stops[0].Name)
	assert.Equal(t, "B", plan.Start)
	assert.InDelta(t, 40.0, plan.Estimate.Length, 1e-9)
	assert.Equal(t, 4, plan.Estimate.Jumps)
}

// inputLength is the length of the route flown in the order given, starting
// at start when one is named.
func inputLength(stops []route.Stop, start string, closed bool) float64 {
	ordered := stops
	if i := indexOf(stops, start); i > 0 {
		ordered = append([]route.Stop{stops[i]}, stops[:i]...)
		ordered = append(ordered, stops[i+1:]...)
	}
	var total float64
	for _, leg := range tour.Legs(route.Points(ordered), closed) {
		total += leg
	}
	return total
}

func TestPlanner_FixedStartBetweenEnds(t *testing.T) {
	stops := []route.Stop{
		{Name: "S"},
		{Name: "B", Coords: geo.Point3D{X: 50, Y: 1}},
		{Name: "F", Coords: geo.Point3D{Y: -3}},
		{Name: "A", Coords: geo.Point3D{X: -50, Y: 1}},
	}

	for _, closed := range []bool{true, false} {
		t.Run(fmt.Sprintf("round trip %v", closed), func(t *testing.T) {
			p, _, _ := newTestPlanner(t)

			plan, err := p.Plan(context.Background(), PlanRequest{
				Stops:     stops,
				Start:     "S",
				JumpRange: 20,
				RoundTrip: closed,
			})
			require.NoError(t, err)

			assert.Equal(t, "S", plan.Stops[0].Name)
			assert.LessOrEqual(t, plan.Estimate.Length, inputLength(stops, "S", closed)+1e-9)
		})
	}
}

func TestPlanner_NoWorseThanInputOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(87))

	for round := range 150 {
		n := 2 + rng.Intn(11)
		stops := make([]route.Stop, n)
		for i := range stops {
			stops[i] = route.Stop{
				Name: fmt.Sprintf("Sys %d", i),
				Coords: geo.Point3D{
					X: rng.Float64()*400 - 200,
					Y: rng.Float64()*400 - 200,
					Z: rng.Float64()*100 - 50,
				},
			}
		}
		start := ""
		if round%2 == 1 {
			start = stops[rng.Intn(n)].Name
		}

		for _, closed := range []bool{true, false} {
			p, _, _ := newTestPlanner(t)

			plan, err := p.Plan(context.Background(), PlanRequest{
				Stops:     stops,
				Start:     start,
				JumpRange: 30,
				RoundTrip: closed,
			})
			require.NoError(t, err)
			require.Len(t, plan.Stops, n)
			if start != "" {
				assert.Equal(t, start, plan.Stops[0].Name)
			}

			assert.LessOrEqual(t, plan.Estimate.Length, inputLength(stops, start, closed)+1e-9,
				"round %d start=%q round trip=%v", round, start, closed)
		}
	}
}

func TestPlanner_UnknownStartIsIgnored(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	plan, err := p.Plan(context.Background(), PlanRequest{
		Stops:     squareStops(),
		Start:     "Nowhere",
		JumpRange: 10,
		RoundTrip: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Nowhere", plan.UnknownStart)
	assert.Empty(t, plan.Start)
	assert.Len(t, plan.Stops, 4)
}

func TestPlanner_MergesDuplicateNames(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	stops := append(squareStops(),
		route.Stop{Name: "a", Coords: geo.Point3D{}, Payload: []string{"A 2"}},
	)
	stops[0].Payload = []string{"A 1"}

	plan, err := p.Plan(context.Background(), PlanRequest{Stops: stops, JumpRange: 10, RoundTrip: true})
	require.NoError(t, err)
	require.Len(t, plan.Stops, 4)

	for _, s := range plan.Stops {
		if s.Name == "A" {
			assert.Equal(t, []string{"A 1", "A 2"}, s.Payload)
		}
	}
}

func TestPlanner_StartOnlyLeavesOneStop(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	plan, err := p.Plan(context.Background(), PlanRequest{
		Stops: []route.Stop{
			{Name: "Sol"},
			{Name: "Alpha Centauri", Coords: geo.Point3D{X: 3.03125, Y: -0.09375, Z: 3.15625}},
		},
		Start:     "Alpha Centauri",
		JumpRange: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha Centauri", "Sol"}, names(plan.Stops))
	assert.Len(t, plan.Legs, 1)
	assert.Equal(t, 1, plan.Estimate.Jumps)
}

func TestPlanner_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  PlanRequest
	}{
		{name: "no stops", req: PlanRequest{JumpRange: 10}},
		{name: "one stop", req: PlanRequest{Stops: []route.Stop{{Name: "Sol"}}, JumpRange: 10}},
		{name: "one stop twice", req: PlanRequest{Stops: []route.Stop{{Name: "Sol"}, {Name: "SOL"}}, JumpRange: 10}},
		{name: "zero range", req: PlanRequest{Stops: squareStops()}},
		{name: "negative range", req: PlanRequest{Stops: squareStops(), JumpRange: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPlanner(t)
			_, err := p.Plan(context.Background(), tt.req)
			require.ErrorIs(t, err, fault.ErrInvalidInput)
		})
	}
}

func TestPlanner_RejectsConcurrentRun(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	_, err := p.begin(context.Background())
	require.NoError(t, err)
	assert.True(t, p.Running())

	_, err = p.Plan(context.Background(), PlanRequest{Stops: squareStops(), JumpRange: 10})
	require.ErrorIs(t, err, fault.ErrOptimizationInProgress)

	err = p.Start(context.Background(), PlanRequest{Stops: squareStops(), JumpRange: 10}, nil)
	require.ErrorIs(t, err, fault.ErrOptimizationInProgress)

	p.end()
	assert.False(t, p.Running())

	_, err = p.Plan(context.Background(), PlanRequest{Stops: squareStops(), JumpRange: 10})
	require.NoError(t, err)
}

func TestPlanner_StartRunsInBackground(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	type result struct {
		plan Plan
		err  error
	}
	done := make(chan result, 1)

	err := p.Start(context.Background(), PlanRequest{Stops: squareStops(), JumpRange: 10, RoundTrip: true},
		func(plan Plan, err error) { done <- result{plan, err} })
	require.NoError(t, err)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, 4, r.plan.Estimate.Jumps)
	case <-time.After(5 * time.Second):
		t.Fatal("background plan did not finish")
	}
	assert.False(t, p.Running())
}

func TestPlanner_ClosedRefusesWork(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	p.Close()

	_, err := p.Plan(context.Background(), PlanRequest{Stops: squareStops(), JumpRange: 10})
	require.ErrorIs(t, err, ErrPlannerClosed)

	err = p.Start(context.Background(), PlanRequest{Stops: squareStops(), JumpRange: 10}, nil)
	require.ErrorIs(t, err, ErrPlannerClosed)
}

func TestPlanner_CancelledContext(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Plan(ctx, PlanRequest{Stops: squareStops(), JumpRange: 10})
	require.Error(t, err)
	assert.False(t, p.Running())
}

func TestPlanner_ApplyKeepsStatuses(t *testing.T) {
	p, state, tb := newTestPlanner(t)

	live := squareStops()
	live[2].Status = route.StatusVisited // B
	require.NoError(t, state.LoadRoute(live))

	input := squareStops()
	input[3].Status = route.StatusSkipped // D

	plan, err := p.Plan(context.Background(), PlanRequest{Stops: input, JumpRange: 10, RoundTrip: true})
	require.NoError(t, err)

	applied, err := p.Apply(plan)
	require.NoError(t, err)
	assert.Equal(t, names(plan.Stops), names(applied))

	got := state.Statuses()
	assert.Equal(t, route.StatusVisited, got["b"])
	assert.Equal(t, route.StatusSkipped, got["d"])
	assert.Equal(t, route.StatusUnvisited, got["a"])

	tb.AssertPublished(t, eventbus.EventRouteLoaded)
}

func TestPlan_OutputName(t *testing.T) {
	plan := Plan{
		Stops:     make([]route.Stop, 12),
		Estimate:  tour.JumpEstimate{Jumps: 87},
		JumpRange: 42.5,
	}
	assert.Equal(t, "route_12-stops_87-jumps_42.5ly.csv", plan.OutputName())

	plan.JumpRange = 60
	assert.Equal(t, "route_12-stops_87-jumps_60ly.csv", plan.OutputName())
}
