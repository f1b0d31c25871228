package l1cloud

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Point is a 3D coordinate in the sensor frame of the scan that produced it
// (metres).
type Point = r3.Vec

// Centroid returns the arithmetic mean of points. The second return value is
// false for an empty slice.
func Centroid(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	var sum Point
	for _, p := range points {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1/float64(len(points)), sum), true
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// IsFinite reports whether every coordinate of p is a finite number.
func IsFinite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}
