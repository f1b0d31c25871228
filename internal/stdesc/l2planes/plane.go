package l2planes

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
)

// Plane is a locally planar surface patch fitted to one voxel or to a merged
// region of voxels.
type Plane struct {
	Center      l1cloud.Point // mean of member points
	Normal      l1cloud.Point // unit; largest-magnitude component is positive
	Eigenvalues [3]float64    // covariance eigenvalues, ascending
	PointCount  int
	Radius      float64            // sqrt of the largest eigenvalue
	Voxels      []l1cloud.VoxelKey // extent, ascending key order
}

// Distance returns the unsigned distance from p to the plane.
func (pl Plane) Distance(p l1cloud.Point) float64 {
	return math.Abs(r3.Dot(pl.Normal, r3.Sub(p, pl.Center)))
}

// NormalDifference returns the chord length between two unit normals,
// ignoring their sign. It is 0 for parallel normals and √2 for orthogonal
// ones.
func NormalDifference(a, b l1cloud.Point) float64 {
	return math.Min(r3.Norm(r3.Sub(a, b)), r3.Norm(r3.Add(a, b)))
}

// moments is the sufficient statistic of a point set for plane fitting:
// count, centroid and centred scatter matrix (upper triangle).
type moments struct {
	n       int
	mean    l1cloud.Point
	scatter [6]float64 // xx, xy, xz, yy, yz, zz
}

func momentsOf(points []l1cloud.Point) moments {
	m := moments{n: len(points)}
	if m.n == 0 {
		return m
	}
	m.mean, _ = l1cloud.Centroid(points)
	for _, p := range points {
		d := r3.Sub(p, m.mean)
		m.scatter[0] += d.X * d.X
		m.scatter[1] += d.X * d.Y
		m.scatter[2] += d.X * d.Z
		m.scatter[3] += d.Y * d.Y
		m.scatter[4] += d.Y * d.Z
		m.scatter[5] += d.Z * d.Z
	}
	return m
}

// merge combines two moment sets with the parallel-axis rule.
func (m moments) merge(o moments) moments {
	if m.n == 0 {
		return o
	}
	if o.n == 0 {
		return m
	}
	n := m.n + o.n
	d := r3.Sub(o.mean, m.mean)
	w := float64(m.n) * float64(o.n) / float64(n)
	out := moments{
		n:    n,
		mean: r3.Add(m.mean, r3.Scale(float64(o.n)/float64(n), d)),
	}
	cross := [6]float64{d.X * d.X, d.X * d.Y, d.X * d.Z, d.Y * d.Y, d.Y * d.Z, d.Z * d.Z}
	for i := range out.scatter {
		out.scatter[i] = m.scatter[i] + o.scatter[i] + w*cross[i]
	}
	return out
}

// fit decomposes the covariance of m. ok is false when the decomposition
// fails or the point set is empty.
func (m moments) fit() (pl Plane, ok bool) {
	if m.n == 0 {
		return Plane{}, false
	}
	inv := 1 / float64(m.n)
	s := m.scatter
	cov := mat.NewSymDense(3, []float64{
		s[0] * inv, s[1] * inv, s[2] * inv,
		s[1] * inv, s[3] * inv, s[4] * inv,
		s[2] * inv, s[4] * inv, s[5] * inv,
	})

	var es mat.EigenSym
	if !es.Factorize(cov, true) {
		return Plane{}, false
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	normal := canonicalNormal(l1cloud.Point{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)})
	if math.IsNaN(normal.X) {
		return Plane{}, false
	}
	largest := math.Max(vals[2], 0)
	return Plane{
		Center:      m.mean,
		Normal:      normal,
		Eigenvalues: [3]float64{vals[0], vals[1], vals[2]},
		PointCount:  m.n,
		Radius:      math.Sqrt(largest),
	}, true
}

// planar reports whether the smallest eigenvalue is small relative to the
// middle one.
func (pl Plane) planar(threshold float64) bool {
	mid := pl.Eigenvalues[1]
	if mid <= 0 {
		return false
	}
	return math.Max(pl.Eigenvalues[0], 0)/mid < threshold
}

// canonicalNormal normalises n and flips it so that its largest-magnitude
// component is positive. Ties resolve in X, Y, Z order.
func canonicalNormal(n l1cloud.Point) l1cloud.Point {
	norm := r3.Norm(n)
	if norm == 0 {
		return l1cloud.Point{X: math.NaN()}
	}
	n = r3.Scale(1/norm, n)
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	var lead float64
	switch {
	case ax >= ay && ax >= az:
		lead = n.X
	case ay >= az:
		lead = n.Y
	default:
		lead = n.Z
	}
	if lead < 0 {
		n = r3.Scale(-1, n)
	}
	return n
}
