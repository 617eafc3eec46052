package waypoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/waypoint/internal/core/eventbus"
	"github.com/colonyops/waypoint/internal/core/fault"
	"github.com/colonyops/waypoint/internal/core/geo"
	"github.com/colonyops/waypoint/internal/core/route"
	"github.com/colonyops/waypoint/internal/core/tour"
)

// ErrPlannerClosed is returned by Plan and Start after Close.
var ErrPlannerClosed = errors.New("planner closed")

// PlannerOptions tunes matrix construction and the local search.
type PlannerOptions struct {
	BlockSize     int
	Workers       int
	TimeLimit     time.Duration
	MaxIterations int
}

// PlanRequest describes one optimization run.
type PlanRequest struct {
	Stops     []route.Stop
	Start     string  // optional fixed start, matched with route.Key
	JumpRange float64 // light years, must be positive
	RoundTrip bool    // include the leg back to the first stop
}

// Plan is an ordered route with its jump estimate.
type Plan struct {
	Stops     []route.Stop
	Legs      []float64
	Estimate  tour.JumpEstimate
	JumpRange float64
	RoundTrip bool

	// Start is the matched fixed start, UnknownStart the requested name when
	// no stop matched it.
	Start        string
	UnknownStart string

	Moves     int
	Truncated bool
	Elapsed   time.Duration
}

// OutputName is the file name an exported plan is written to.
func (p Plan) OutputName() string {
	return fmt.Sprintf("route_%d-stops_%d-jumps_%sly.csv",
		len(p.Stops), p.Estimate.Jumps, strconv.FormatFloat(p.JumpRange, 'f', -1, 64))
}

// Planner runs at most one optimization at a time.
type Planner struct {
	state *route.State
	bus   *eventbus.EventBus
	log   zerolog.Logger
	opts  PlannerOptions

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewPlanner creates a Planner that applies plans to state.
func NewPlanner(state *route.State, bus *eventbus.EventBus, opts PlannerOptions, log zerolog.Logger) *Planner {
	return &Planner{
		state: state,
		bus:   bus,
		log:   log,
		opts:  opts,
	}
}

// Running reports whether an optimization is in flight.
func (p *Planner) Running() bool {
	return p.running.Load()
}

// Plan optimizes req on the calling goroutine. A concurrent run fails
// immediately with fault.ErrOptimizationInProgress.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (Plan, error) {
	runCtx, err := p.begin(ctx)
	if err != nil {
		return Plan{}, err
	}
	defer p.end()

	return p.plan(runCtx, req)
}

// Start optimizes req on a background goroutine and calls done with the
// result. The in-progress check happens before Start returns.
func (p *Planner) Start(ctx context.Context, req PlanRequest, done func(Plan, error)) error {
	runCtx, err := p.begin(ctx)
	if err != nil {
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		plan, err := p.plan(runCtx, req)
		p.end()
		if done != nil {
			done(plan, err)
		}
	}()
	return nil
}

// Close cancels the in-flight run, refuses new ones and waits for a
// background run to return.
func (p *Planner) Close() {
	p.mu.Lock()
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Planner) begin(ctx context.Context) (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPlannerClosed
	}
	if !p.running.CompareAndSwap(false, true) {
		return nil, fault.ErrOptimizationInProgress
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	return runCtx, nil
}

func (p *Planner) end() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.running.Store(false)
}

func (p *Planner) plan(ctx context.Context, req PlanRequest) (Plan, error) {
	started := time.Now()

	if req.JumpRange <= 0 {
		return Plan{}, fault.Invalid("jump range must be positive, got %v", req.JumpRange)
	}

	stops := route.Aggregate(req.Stops)
	if len(stops) < 2 {
		return Plan{}, fault.Invalid("route needs at least 2 distinct stops, got %d", len(stops))
	}
	out := Plan{JumpRange: req.JumpRange, RoundTrip: req.RoundTrip}

	// a fixed start goes first so the input order begins there too
	points := stops
	if req.Start != "" {
		i := indexOf(stops, req.Start)
		if i < 0 {
			p.log.Warn().Str("start", req.Start).Msg("start system not in route, optimizing without fixed start")
			out.UnknownStart = req.Start
		} else {
			out.Start = stops[i].Name
			points = make([]route.Stop, 0, len(stops))
			points = append(points, stops[i])
			points = append(points, stops[:i]...)
			points = append(points, stops[i+1:]...)
		}
	}

	m, err := geo.BuildMatrix(ctx, route.Points(points), geo.MatrixOptions{
		BlockSize: p.opts.BlockSize,
		Workers:   p.opts.Workers,
	})
	if err != nil {
		return Plan{}, p.timeout(err)
	}

	opts := tour.Options{
		TimeLimit:     p.opts.TimeLimit,
		MaxIterations: p.opts.MaxIterations,
	}

	// closed tours come back starting at index 0, which is the fixed start
	var res tour.Result
	if req.RoundTrip {
		res, err = tour.Solve(ctx, m, opts)
	} else {
		res, err = tour.SolvePath(ctx, m, out.Start != "", opts)
	}
	if err != nil {
		return Plan{}, p.timeout(err)
	}

	ordered := make([]route.Stop, len(res.Order))
	for i, idx := range res.Order {
		ordered[i] = points[idx]
	}
	out.Moves = res.Moves
	out.Truncated = res.Truncated

	out.Stops = ordered
	out.Legs = tour.Legs(route.Points(ordered), req.RoundTrip)
	est, err := tour.EstimateJumps(out.Legs, req.JumpRange)
	if err != nil {
		return Plan{}, err
	}
	out.Estimate = est
	out.Elapsed = time.Since(started)

	p.log.Info().
		Int("stops", len(out.Stops)).
		Int("jumps", est.Jumps).
		Float64("length", est.Length).
		Int("moves", out.Moves).
		Bool("truncated", out.Truncated).
		Dur("elapsed", out.Elapsed).
		Msg("route optimized")

	return out, nil
}

func (p *Planner) timeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fault.ErrOptimizationTimeout
	}
	return err
}

// Apply loads plan into the route state. Statuses already known for a stop,
// from the live route or from the plan's input, carry over by name.
func (p *Planner) Apply(plan Plan) ([]route.Stop, error) {
	prior := make(map[string]route.Status, len(plan.Stops))
	for _, s := range plan.Stops {
		prior[route.Key(s.Name)] = s.Status
	}
	for k, st := range p.state.Statuses() {
		if st != route.StatusUnvisited {
			prior[k] = st
		}
	}

	stops := route.RestoreStatuses(plan.Stops, prior)
	if err := p.state.LoadRoute(stops); err != nil {
		return nil, err
	}

	p.bus.PublishRouteLoaded(eventbus.RouteLoadedPayload{Stops: len(stops), Source: "plan"})
	return stops, nil
}

func indexOf(stops []route.Stop, name string) int {
	k := route.Key(name)
	for i, s := range stops {
		if route.Key(s.Name) == k {
			return i
		}
	}
	return -1
}
