// Package geo holds 3D coordinates and the pairwise distance matrix the tour
// optimizer runs on.
package geo

import (
	"fmt"
	"math"
)

// Point3D is a position in light-years.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// IsFinite reports whether every coordinate is a finite number.
func (p Point3D) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

// Array returns the coordinates as [x, y, z].
func (p Point3D) Array() [3]float64 {
	return [3]float64{p.X, p.Y, p.Z}
}

func (p Point3D) String() string {
	return fmt.Sprintf("(%g, %g, %g)", p.X, p.Y, p.Z)
}

// FromArray builds a point from [x, y, z].
func FromArray(a [3]float64) Point3D {
	return Point3D{X: a[0], Y: a[1], Z: a[2]}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
