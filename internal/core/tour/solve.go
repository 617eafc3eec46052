package tour

import (
	"context"
	"errors"
	"time"

	"github.com/colonyops/waypoint/internal/core/fault"
)

// DefaultEps is the minimum improvement a move must achieve to be applied.
const DefaultEps = 1e-9

// Costs is the distance oracle the optimizer runs on. *geo.Matrix implements it.
type Costs interface {
	Len() int
	At(i, j int) float64
}

// Options bounds the local search. Zero values mean "no limit" and DefaultEps.
type Options struct {
	TimeLimit     time.Duration // soft wall-clock budget for the improvement phase
	MaxIterations int           // maximum accepted moves
	Eps           float64       // acceptance tolerance, moves must improve by more than Eps
}

// Result is a closed tour over indices [0, n).
type Result struct {
	Order     []int   // visiting order, each index exactly once
	Length    float64 // closed tour length including the return leg
	Moves     int     // accepted improvement moves
	Truncated bool    // the budget ran out before a local optimum was reached
}

// Solve orders the n points of dist into a short closed tour.
//
// It fails with fault.ErrInvalidInput when n < 2. When ctx is already done on
// entry no tour exists yet and fault.ErrOptimizationTimeout is returned;
// after construction a cancelled context or exhausted budget only stops the
// improvement phase early.
func Solve(ctx context.Context, dist Costs, opts Options) (Result, error) {
	n := dist.Len()
	if n < 2 {
		return Result{}, fault.Invalid("tour needs at least 2 points, got %d", n)
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, fault.ErrOptimizationTimeout
		}
		return Result{}, err
	}
	if opts.Eps <= 0 {
		opts.Eps = DefaultEps
	}

	identity := make([]int, n)
	for i := range identity {
		identity[i] = i
	}
	identityCost := Length(dist, identity)

	// every cycle over 3 or fewer points has the same length
	if n <= 3 {
		return Result{Order: identity, Length: identityCost}, nil
	}

	b := newBudget(ctx, opts)

	order := NearestNeighbor(dist, 0)
	moves := improve(dist, order, opts.Eps, b)
	cost := Length(dist, order)

	if cost > identityCost {
		alt := make([]int, n)
		copy(alt, identity)
		moves += improve(dist, alt, opts.Eps, b)
		if altCost := Length(dist, alt); altCost < cost {
			order, cost = alt, altCost
		}
	}

	Canonicalize(order)

	return Result{
		Order:     order,
		Length:    cost,
		Moves:     moves,
		Truncated: b.exhausted,
	}, nil
}

// Length returns the closed tour length of order.
func Length(dist Costs, order []int) float64 {
	if len(order) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(order); i++ {
		total += dist.At(order[i-1], order[i])
	}
	return total + dist.At(order[len(order)-1], order[0])
}

// NearestNeighbor builds a tour starting at start by repeatedly moving to the
// closest unvisited point. Ties go to the lower index.
func NearestNeighbor(dist Costs, start int) []int {
	n := dist.Len()
	visited := make([]bool, n)
	order := make([]int, 0, n)

	cur := start
	visited[cur] = true
	order = append(order, cur)

	for len(order) < n {
		best := -1
		var bestDist float64
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			d := dist.At(cur, j)
			if best == -1 || d < bestDist {
				best, bestDist = j, d
			}
		}
		visited[best] = true
		order = append(order, best)
		cur = best
	}

	return order
}

// budget tracks the improvement phase limits. Wall-clock and context checks are
// throttled to one in every 2048 candidate evaluations.
type budget struct {
	ctx         context.Context
	useDeadline bool
	deadline    time.Time
	maxMoves    int
	moves       int
	step        int
	exhausted   bool
}

func newBudget(ctx context.Context, opts Options) *budget {
	b := &budget{ctx: ctx, maxMoves: opts.MaxIterations}
	if opts.TimeLimit > 0 {
		b.useDeadline = true
		b.deadline = time.Now().Add(opts.TimeLimit)
	}
	return b
}

// tick is called once per candidate move and reports whether to stop.
func (b *budget) tick() bool {
	if b.exhausted {
		return true
	}
	b.step++
	if b.step&2047 != 0 {
		return false
	}
	if b.ctx.Err() != nil || (b.useDeadline && time.Now().After(b.deadline)) {
		b.exhausted = true
	}
	return b.exhausted
}

// accept records an applied move and reports whether to stop.
func (b *budget) accept() bool {
	b.moves++
	if b.maxMoves > 0 && b.moves >= b.maxMoves {
		b.exhausted = true
	}
	return b.exhausted
}
