package geo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/colonyops/waypoint/internal/core/fault"
)

// DefaultBlockSize is the edge length of the square blocks the matrix is
// computed in.
const DefaultBlockSize = 500

// MatrixOptions tunes matrix construction. Zero values select defaults.
type MatrixOptions struct {
	BlockSize int // edge of a square block; 0 = DefaultBlockSize
	Workers   int // concurrent blocks; 0 = runtime.NumCPU()
}

// Matrix is a dense symmetric N×N distance matrix with a zero diagonal.
type Matrix struct {
	n    int
	data []float64
}

// BuildMatrix computes the pairwise distances between points.
//
// The output is split into BlockSize×BlockSize blocks. Only block pairs (I, J)
// with I ≤ J are computed, the result is mirrored into (J, I). Distinct block
// pairs touch disjoint cells so they run concurrently without locking.
func BuildMatrix(ctx context.Context, points []Point3D, opts MatrixOptions) (*Matrix, error) {
	for i, p := range points {
		if !p.IsFinite() {
			return nil, fault.Invalid("point %d has non-finite coordinates %s", i, p)
		}
	}

	n := len(points)
	m := &Matrix{n: n, data: make([]float64, n*n)}
	if n < 2 {
		return m, nil
	}

	block := opts.BlockSize
	if block <= 0 {
		block = DefaultBlockSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	blocks := (n + block - 1) / block

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for bi := 0; bi < blocks; bi++ {
		for bj := bi; bj < blocks; bj++ {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				m.fillBlock(points, bi*block, min((bi+1)*block, n), bj*block, min((bj+1)*block, n))
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// fillBlock writes rows [r0,r1) × cols [c0,c1) and their transpose.
func (m *Matrix) fillBlock(points []Point3D, r0, r1, c0, c1 int) {
	n := m.n
	for i := r0; i < r1; i++ {
		start := c0
		if r0 == c0 {
			// diagonal block: upper triangle only, the mirror fills the rest
			start = i + 1
		}
		for j := start; j < c1; j++ {
			d := Distance(points[i], points[j])
			m.data[i*n+j] = d
			m.data[j*n+i] = d
		}
	}
}

// Len returns N.
func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return m.n
}

// At returns the distance between points i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.data[i*m.n+j]
}

// TourLength sums the distances along order. When closed is true the leg from
// the last index back to the first is included.
func (m *Matrix) TourLength(order []int, closed bool) float64 {
	if len(order) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(order); i++ {
		total += m.At(order[i-1], order[i])
	}
	if closed {
		total += m.At(order[len(order)-1], order[0])
	}
	return total
}
