package tour

// maxSegment is the longest run of stops Or-opt relocates in one move.
const maxSegment = 3

// improve runs 2-opt and Or-opt sweeps over order in place until a full round
// finds no improving move or the budget is exhausted. It returns the number of
// accepted moves. Each accepted move strictly shortens the tour by more than
// eps, so the loop terminates.
func improve(dist Costs, order []int, eps float64, b *budget) int {
	moves := 0
	for !b.exhausted {
		n2 := twoOptSweep(dist, order, eps, b)
		nor := orOptSweep(dist, order, eps, b)
		moves += n2 + nor
		if n2+nor == 0 {
			break
		}
	}
	return moves
}

// twoOptSweep scans every pair of non-adjacent edges (a→b), (c→d) once and
// replaces them with (a→c), (b→d) by reversing b..c whenever that is shorter.
func twoOptSweep(dist Costs, t []int, eps float64, b *budget) int {
	n := len(t)
	accepted := 0

	for i := 0; i < n-2; i++ {
		for k := i + 2; k < n; k++ {
			if i == 0 && k == n-1 {
				continue // the two edges share t[0]
			}
			if b.tick() {
				return accepted
			}

			a, bb := t[i], t[i+1]
			c, d := t[k], t[(k+1)%n]

			delta := dist.At(a, c) + dist.At(bb, d) - dist.At(a, bb) - dist.At(c, d)
			if delta >= -eps {
				continue
			}

			reverse(t, i+1, k)
			accepted++
			if b.accept() {
				return accepted
			}
		}
	}

	return accepted
}

// orOptSweep tries to move every segment of 1..maxSegment consecutive stops,
// in either orientation, between two other adjacent stops.
func orOptSweep(dist Costs, t []int, eps float64, b *budget) int {
	n := len(t)
	accepted := 0

	for l := 1; l <= maxSegment; l++ {
		if n < l+3 {
			break
		}
		for i := 0; i < n; i++ {
			p := t[(i-1+n)%n]
			s0 := t[i]
			s1 := t[(i+l-1)%n]
			q := t[(i+l)%n]

			removeGain := dist.At(p, s0) + dist.At(s1, q) - dist.At(p, q)
			// a single stop never inserts for less than zero, longer
			// segments can when they are reversed or spread out
			if l == 1 && removeGain <= eps {
				continue
			}

			bestJ, bestDelta, bestRev := -1, -eps, false
			for j := 0; j < n; j++ {
				// skip edges touching the segment: p→s0, internal edges, s1→q
				if offset := (j - (i - 1) + n) % n; offset <= l {
					continue
				}
				if b.tick() {
					return accepted
				}

				x, y := t[j], t[(j+1)%n]
				base := dist.At(x, y)

				if delta := dist.At(x, s0) + dist.At(s1, y) - base - removeGain; delta < bestDelta {
					bestJ, bestDelta, bestRev = j, delta, false
				}
				if delta := dist.At(x, s1) + dist.At(s0, y) - base - removeGain; delta < bestDelta {
					bestJ, bestDelta, bestRev = j, delta, true
				}
			}

			if bestJ < 0 {
				continue
			}

			relocate(t, i, l, t[bestJ], bestRev)
			accepted++
			if b.accept() {
				return accepted
			}
		}
	}

	return accepted
}

// relocate moves the l stops starting at position i so they follow the stop
// after, reversing them when rev is set. The result is written back into t as
// a rotation of the new cycle.
func relocate(t []int, i, l, after int, rev bool) {
	n := len(t)

	seg := make([]int, l)
	for k := 0; k < l; k++ {
		seg[k] = t[(i+k)%n]
	}
	if rev {
		reverse(seg, 0, l-1)
	}

	out := make([]int, 0, n)
	for k := 0; k < n-l; k++ {
		v := t[(i+l+k)%n]
		out = append(out, v)
		if v == after {
			out = append(out, seg...)
		}
	}

	copy(t, out)
}

// reverse reverses t[i..k] in place.
func reverse(t []int, i, k int) {
	for i < k {
		t[i], t[k] = t[k], t[i]
		i++
		k--
	}
}

// Canonicalize rotates a closed tour so it starts at its smallest index and
// orients it so the second element is smaller than the last. Equal cycles
// produce equal slices.
func Canonicalize(t []int) {
	n := len(t)
	if n < 3 {
		return
	}
	minPos := 0
	for i, v := range t {
		if v < t[minPos] {
			minPos = i
		}
	}
	RotateToFront(t, minPos)
	if t[1] > t[n-1] {
		reverse(t, 1, n-1)
	}
}

// RotateToFront rotates t in place so that t[pos] becomes t[0].
func RotateToFront(t []int, pos int) {
	if pos <= 0 || pos >= len(t) {
		return
	}
	reverse(t, 0, pos-1)
	reverse(t, pos, len(t)-1)
	reverse(t, 0, len(t)-1)
}
