package l4descriptors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
)

// minTriangleArea2 rejects (near-)collinear triples: it bounds the squared
// norm of the edge cross product, i.e. (2·area)².
const minTriangleArea2 = 1e-12

// SideCode is the discretised form of a triangle's sorted side lengths.
// Triangles whose sides round to the same multiples of the resolution share
// a code.
type SideCode struct {
	A, B, C int64
}

// TriangleDescriptor is a rotation- and permutation-invariant fingerprint of
// three keypoints.
//
// Vertices are ordered by the length of the side opposite them, so
// Sides[0] = |V1V2|, Sides[1] = |V0V2| and Sides[2] = |V0V1|, with
// Sides ascending. Tied sides may pair with their vertices in either order.
type TriangleDescriptor struct {
	Sides    [3]float64
	Code     SideCode
	Vertices [3]l1cloud.Point
	Normals  [3]l1cloud.Point // plane normal associated with each vertex
	// VertexAttached holds |n_tri · Normals[i]| for each vertex, where n_tri
	// is the triangle's own unit normal.
	VertexAttached [3]float64
	Center         l1cloud.Point
	FrameID        int
}

// Quantize returns the code of sorted side lengths at the given resolution.
func Quantize(sides [3]float64, resolution float64) SideCode {
	q := func(v float64) int64 { return int64(math.Floor(v/resolution + 0.5)) }
	return SideCode{A: q(sides[0]), B: q(sides[1]), C: q(sides[2])}
}

// Canonicalize builds the canonical descriptor of a triangle. It is a pure
// function of the vertex set: any ordering of the same three
// (vertex, normal) pairs yields an identical descriptor. ok is false for
// degenerate (collinear or coincident) triangles.
//
// Vertices whose opposite sides are tied (SidesTied) are ordered by
// VertexAttached, largest first, which a rigid motion preserves. If the
// attached values tie too, the order is arbitrary between observations and
// matching must try both (see Tied).
func Canonicalize(vertices, normals [3]l1cloud.Point, frameID int, resolution float64) (d TriangleDescriptor, ok bool) {
	var opposite [3]float64
	for i := 0; i < 3; i++ {
		opposite[i] = l1cloud.Distance(vertices[(i+1)%3], vertices[(i+2)%3])
	}

	order := [3]int{0, 1, 2}
	sort.Slice(order[:], func(a, b int) bool {
		i, j := order[a], order[b]
		if opposite[i] != opposite[j] {
			return opposite[i] < opposite[j]
		}
		return lessPoint(vertices[i], vertices[j])
	})

	v0, v1, v2 := vertices[order[0]], vertices[order[1]], vertices[order[2]]
	cross := r3.Cross(r3.Sub(v1, v0), r3.Sub(v2, v0))
	if r3.Norm2(cross) < minTriangleArea2 {
		return TriangleDescriptor{}, false
	}
	triNormal := r3.Unit(cross)
	var attached [3]float64
	for i := range attached {
		attached[i] = math.Abs(r3.Dot(triNormal, normals[i]))
	}

	for k := 0; k < 2; k++ {
		i, j := order[k], order[k+1]
		if SidesTied(opposite[i], opposite[j], SideTieTolerance) && attached[j]-attached[i] > attachedTieTolerance {
			order[k], order[k+1] = j, i
		}
	}

	d.Sides = opposite
	sort.Float64s(d.Sides[:])
	for k, i := range order {
		d.Vertices[k] = vertices[i]
		d.Normals[k] = normals[i]
		d.VertexAttached[k] = attached[i]
	}

	d.Code = Quantize(d.Sides, resolution)
	d.Center = r3.Scale(1.0/3, r3.Add(r3.Add(d.Vertices[0], d.Vertices[1]), d.Vertices[2]))
	d.FrameID = frameID
	return d, true
}

const (
	// SideTieTolerance is the relative difference under which two side
	// lengths of one triangle count as equal when ordering its vertices.
	SideTieTolerance = 1e-6

	attachedTieTolerance = 1e-6
)

// SidesTied reports whether side lengths a and b differ by at most
// tolerance relative to the longer one.
func SidesTied(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(a, b)
}

// Tied reports, for k = 0 and 1, whether Sides[k] and Sides[k+1] are tied
// within tolerance, in which case vertices k and k+1 may appear in either
// order when the same triangle is observed again.
func (d TriangleDescriptor) Tied(tolerance float64) [2]bool {
	return [2]bool{
		SidesTied(d.Sides[0], d.Sides[1], tolerance),
		SidesTied(d.Sides[1], d.Sides[2], tolerance),
	}
}

// lessPoint orders points lexicographically; used only to break exact
// side-length ties.
func lessPoint(a, b l1cloud.Point) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// SideDistance is the relative difference between two descriptors' side
// vectors: |a - b| / |a|.
func SideDistance(a, b TriangleDescriptor) float64 {
	va := r3.Vec{X: a.Sides[0], Y: a.Sides[1], Z: a.Sides[2]}
	vb := r3.Vec{X: b.Sides[0], Y: b.Sides[1], Z: b.Sides[2]}
	na := r3.Norm(va)
	if na == 0 {
		return math.Inf(1)
	}
	return r3.Norm(r3.Sub(va, vb)) / na
}

// AttachedDistance is the Euclidean distance between two descriptors'
// VertexAttached triples.
func AttachedDistance(a, b TriangleDescriptor) float64 {
	return r3.Norm(r3.Vec{
		X: a.VertexAttached[0] - b.VertexAttached[0],
		Y: a.VertexAttached[1] - b.VertexAttached[1],
		Z: a.VertexAttached[2] - b.VertexAttached[2],
	})
}
