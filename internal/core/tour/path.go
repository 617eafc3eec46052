package tour

import (
	"context"
	"slices"

	"github.com/colonyops/waypoint/internal/core/fault"
)

// SolvePath orders the n points of dist into a short open path. When
// fixedFirst is set the path begins at index 0. The result is never longer
// than the path 0, 1, ..., n-1.
//
// The path is found as a closed tour over the points plus one extra depot
// node. Cutting the cycle at the depot leaves the path.
func SolvePath(ctx context.Context, dist Costs, fixedFirst bool, opts Options) (Result, error) {
	n := dist.Len()
	if n < 2 {
		return Result{}, fault.Invalid("path needs at least 2 points, got %d", n)
	}

	pc := &pathCosts{dist: dist, depot: n}
	if fixedFirst {
		// any cycle where the depot does not touch index 0 pays the penalty
		// twice, which always costs more than the input path
		identity := make([]int, n)
		for i := range identity {
			identity[i] = i
		}
		pc.penalty = 2*PathLength(dist, identity) + 1
	}

	res, err := Solve(ctx, pc, opts)
	if err != nil {
		return Result{}, err
	}

	order := res.Order
	RotateToFront(order, slices.Index(order, n))
	path := order[1:]
	if fixedFirst && path[0] != 0 {
		slices.Reverse(path)
	}

	return Result{
		Order:     path,
		Length:    PathLength(dist, path),
		Moves:     res.Moves,
		Truncated: res.Truncated,
	}, nil
}

// PathLength returns the length of order without the return leg.
func PathLength(dist Costs, order []int) float64 {
	var total float64
	for i := 1; i < len(order); i++ {
		total += dist.At(order[i-1], order[i])
	}
	return total
}

// pathCosts extends dist with a depot at index depot. Reaching the depot is
// free from every point, or only from index 0 when penalty is set.
type pathCosts struct {
	dist    Costs
	depot   int
	penalty float64
}

func (c *pathCosts) Len() int { return c.depot + 1 }

func (c *pathCosts) At(i, j int) float64 {
	switch {
	case i == c.depot && j == c.depot:
		return 0
	case i == c.depot:
		return c.toDepot(j)
	case j == c.depot:
		return c.toDepot(i)
	}
	return c.dist.At(i, j)
}

func (c *pathCosts) toDepot(i int) float64 {
	if i == 0 {
		return 0
	}
	return c.penalty
}
