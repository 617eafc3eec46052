package tour

import (
	"context"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/waypoint/internal/core/fault"
	"github.com/colonyops/waypoint/internal/core/geo"
)

func matrixOf(t *testing.T, points []geo.Point3D) *geo.Matrix {
	t.Helper()
	m, err := geo.BuildMatrix(context.Background(), points, geo.MatrixOptions{})
	require.NoError(t, err)
	return m
}

func randomPoints(seed int64, n int) []geo.Point3D {
	rng := rand.New(rand.NewSource(seed))
	points := make([]geo.Point3D, n)
	for i := range points {
		points[i] = geo.Point3D{
			X: rng.Float64() * 1000,
			Y: rng.Float64() * 1000,
			Z: rng.Float64() * 200,
		}
	}
	return points
}

func assertPermutation(t *testing.T, order []int, n int) {
	t.Helper()
	require.Len(t, order, n)
	sorted := append([]int(nil), order...)
	sort.Ints(sorted)
	for i, v := range sorted {
		require.Equal(t, i, v, "order is not a permutation of [0,%d)", n)
	}
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func TestSolve_Square(t *testing.T) {
	// input order is crossed: A, C, B, D
	points := []geo.Point3D{{}, {X: 10, Y: 10}, {X: 10}, {Y: 10}}
	m := matrixOf(t, points)

	res, err := Solve(context.Background(), m, Options{})
	require.NoError(t, err)

	assertPermutation(t, res.Order, 4)
	assert.InDelta(t, 40.0, res.Length, 1e-9)
	assert.False(t, res.Truncated)
}

func TestSolve_TooFewPoints(t *testing.T) {
	for _, n := range []int{0, 1} {
		m := matrixOf(t, randomPoints(1, n))
		_, err := Solve(context.Background(), m, Options{})
		assert.ErrorIs(t, err, fault.ErrInvalidInput, "n=%d", n)
	}
}

func TestSolve_SmallN(t *testing.T) {
	for _, n := range []int{2, 3} {
		m := matrixOf(t, randomPoints(2, n))
		res, err := Solve(context.Background(), m, Options{})
		require.NoError(t, err)
		assertPermutation(t, res.Order, n)
	}
}

func TestSolve_PermutationAndNoWorseThanInputOrder(t *testing.T) {
	for seed := int64(1); seed <= 12; seed++ {
		n := 4 + int(seed*7)%60
		points := randomPoints(seed, n)
		m := matrixOf(t, points)

		res, err := Solve(context.Background(), m, Options{})
		require.NoError(t, err)

		assertPermutation(t, res.Order, n)
		assert.LessOrEqual(t, res.Length, Length(m, identityOrder(n))+1e-9, "seed %d", seed)
		assert.InDelta(t, Length(m, res.Order), res.Length, 1e-9)
	}
}

func TestSolve_LocalOptimumUnderTwoOpt(t *testing.T) {
	points := randomPoints(42, 40)
	m := matrixOf(t, points)

	res, err := Solve(context.Background(), m, Options{})
	require.NoError(t, err)
	require.False(t, res.Truncated)

	order := res.Order
	n := len(order)
	for i := 0; i < n-2; i++ {
		for k := i + 2; k < n; k++ {
			if i == 0 && k == n-1 {
				continue
			}
			a, b := order[i], order[i+1]
			c, d := order[k], order[(k+1)%n]
			delta := m.At(a, c) + m.At(b, d) - m.At(a, b) - m.At(c, d)
			assert.GreaterOrEqual(t, delta, -DefaultEps, "improving 2-opt move at (%d,%d)", i, k)
		}
	}
}

func TestSolve_LocalOptimumUnderOrOpt(t *testing.T) {
	for _, seed := range []int64{7, 42, 1234} {
		m := matrixOf(t, randomPoints(seed, 35))

		res, err := Solve(context.Background(), m, Options{})
		require.NoError(t, err)
		require.False(t, res.Truncated)

		order := res.Order
		n := len(order)
		for l := 1; l <= maxSegment; l++ {
			for i := 0; i < n; i++ {
				p, s0 := order[(i-1+n)%n], order[i]
				s1, q := order[(i+l-1)%n], order[(i+l)%n]
				removeGain := m.At(p, s0) + m.At(s1, q) - m.At(p, q)

				for j := 0; j < n; j++ {
					if offset := (j - (i - 1) + n) % n; offset <= l {
						continue
					}
					x, y := order[j], order[(j+1)%n]
					base := m.At(x, y)

					forward := m.At(x, s0) + m.At(s1, y) - base - removeGain
					backward := m.At(x, s1) + m.At(s0, y) - base - removeGain
					assert.GreaterOrEqual(t, forward, -2*DefaultEps, "seed %d: segment %d+%d after %d", seed, i, l, j)
					assert.GreaterOrEqual(t, backward, -2*DefaultEps, "seed %d: reversed segment %d+%d after %d", seed, i, l, j)
				}
			}
		}
	}
}

func TestSolve_Deterministic(t *testing.T) {
	m := matrixOf(t, randomPoints(9, 30))

	first, err := Solve(context.Background(), m, Options{})
	require.NoError(t, err)
	second, err := Solve(context.Background(), m, Options{})
	require.NoError(t, err)

	assert.Equal(t, first.Order, second.Order)
}

func TestSolve_IterationBudget(t *testing.T) {
	m := matrixOf(t, randomPoints(5, 80))

	res, err := Solve(context.Background(), m, Options{MaxIterations: 1})
	require.NoError(t, err)

	assertPermutation(t, res.Order, 80)
	assert.LessOrEqual(t, res.Moves, 2)
	assert.LessOrEqual(t, res.Length, Length(m, identityOrder(80))+1e-9)
}

func TestSolve_ContextDoneOnEntry(t *testing.T) {
	m := matrixOf(t, randomPoints(3, 10))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := Solve(ctx, m, Options{})
	assert.ErrorIs(t, err, fault.ErrOptimizationTimeout)

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = Solve(ctx, m, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNearestNeighbor(t *testing.T) {
	points := []geo.Point3D{{}, {X: 100}, {X: 1}, {X: 2}}
	m := matrixOf(t, points)

	assert.Equal(t, []int{0, 2, 3, 1}, NearestNeighbor(m, 0))
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []int
	}{
		{name: "already canonical", in: []int{0, 1, 2, 3}, want: []int{0, 1, 2, 3}},
		{name: "rotated", in: []int{2, 3, 0, 1}, want: []int{0, 1, 2, 3}},
		{name: "reversed", in: []int{0, 3, 2, 1}, want: []int{0, 1, 2, 3}},
		{name: "rotated and reversed", in: []int{2, 1, 0, 3}, want: []int{0, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := append([]int(nil), tt.in...)
			Canonicalize(got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRotateToFront(t *testing.T) {
	got := []int{5, 6, 7, 8, 9}
	RotateToFront(got, 3)
	assert.Equal(t, []int{8, 9, 5, 6, 7}, got)
}

func TestRelocate(t *testing.T) {
	got := []int{0, 1, 2, 3, 4, 5}
	// move [1,2] after 4
	relocate(got, 1, 2, 4, false)
	assertPermutation(t, got, 6)

	pos := map[int]int{}
	for i, v := range got {
		pos[v] = i
	}
	assert.Equal(t, (pos[4]+1)%6, pos[1])
	assert.Equal(t, (pos[1]+1)%6, pos[2])

	got = []int{0, 1, 2, 3, 4, 5}
	relocate(got, 1, 2, 4, true)
	for i, v := range got {
		pos[v] = i
	}
	assert.Equal(t, (pos[4]+1)%6, pos[2])
	assert.Equal(t, (pos[2]+1)%6, pos[1])
}
