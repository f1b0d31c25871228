package l1cloud

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Neighbor is a point returned by a NeighborIndex query together with its
// position in the slice the index was built from.
type Neighbor struct {
	Index    int
	Point    Point
	Distance float64 // Euclidean, not squared
}

// indexedPoint is a kd-tree element that remembers its source index.
type indexedPoint struct {
	p   Point
	idx int
}

func (ip indexedPoint) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return ip.p.X
	case 1:
		return ip.p.Y
	default:
		return ip.p.Z
	}
}

// Compare implements kdtree.Comparable.
func (ip indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return ip.coord(d) - c.(indexedPoint).coord(d)
}

// Dims implements kdtree.Comparable.
func (ip indexedPoint) Dims() int { return 3 }

// Distance implements kdtree.Comparable and returns the squared distance.
func (ip indexedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(indexedPoint)
	dx, dy, dz := ip.p.X-q.p.X, ip.p.Y-q.p.Y, ip.p.Z-q.p.Z
	return dx*dx + dy*dy + dz*dz
}

// pointSet implements kdtree.Interface over indexed points.
type pointSet []indexedPoint

func (s pointSet) Index(i int) kdtree.Comparable { return s[i] }
func (s pointSet) Len() int                      { return len(s) }
func (s pointSet) Slice(start, end int) kdtree.Interface {
	return s[start:end]
}
func (s pointSet) Pivot(d kdtree.Dim) int {
	return pointPlane{pointSet: s, Dim: d}.Pivot()
}

// pointPlane pivots a pointSet on a single dimension.
type pointPlane struct {
	kdtree.Dim
	pointSet
}

func (p pointPlane) Less(i, j int) bool {
	return p.pointSet[i].coord(p.Dim) < p.pointSet[j].coord(p.Dim)
}
func (p pointPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	p.pointSet = p.pointSet[start:end]
	return p
}
func (p pointPlane) Swap(i, j int) {
	p.pointSet[i], p.pointSet[j] = p.pointSet[j], p.pointSet[i]
}

// NeighborIndex answers nearest-neighbour queries over a fixed point set.
// It is read-only after construction and safe for concurrent queries.
type NeighborIndex struct {
	tree *kdtree.Tree
	n    int
}

// NewNeighborIndex builds a kd-tree over points. The input slice is not
// retained.
func NewNeighborIndex(points []Point) *NeighborIndex {
	set := make(pointSet, len(points))
	for i, p := range points {
		set[i] = indexedPoint{p: p, idx: i}
	}
	ni := &NeighborIndex{n: len(points)}
	if len(set) > 0 {
		ni.tree = kdtree.New(set, false)
	}
	return ni
}

// Len returns the number of indexed points.
func (ni *NeighborIndex) Len() int { return ni.n }

// Nearest returns the closest indexed point to q. The second return value is
// false when the index is empty.
func (ni *NeighborIndex) Nearest(q Point) (Neighbor, bool) {
	if ni.tree == nil {
		return Neighbor{}, false
	}
	c, d2 := ni.tree.Nearest(indexedPoint{p: q, idx: -1})
	if c == nil {
		return Neighbor{}, false
	}
	ip := c.(indexedPoint)
	return Neighbor{Index: ip.idx, Point: ip.p, Distance: math.Sqrt(d2)}, true
}

// KNearest returns up to k indexed points closest to q, ordered by ascending
// distance with ties broken by source index.
func (ni *NeighborIndex) KNearest(q Point, k int) []Neighbor {
	if ni.tree == nil || k <= 0 {
		return nil
	}
	keeper := kdtree.NewNKeeper(k)
	ni.tree.NearestSet(keeper, indexedPoint{p: q, idx: -1})
	return collect(keeper.Heap)
}

// Within returns every indexed point within radius of q, ordered like
// KNearest.
func (ni *NeighborIndex) Within(q Point, radius float64) []Neighbor {
	if ni.tree == nil || radius < 0 {
		return nil
	}
	keeper := kdtree.NewDistKeeper(radius * radius)
	ni.tree.NearestSet(keeper, indexedPoint{p: q, idx: -1})
	return collect(keeper.Heap)
}

func collect(heap kdtree.Heap) []Neighbor {
	out := make([]Neighbor, 0, len(heap))
	for _, cd := range heap {
		// Keepers seed their heap with a nil sentinel.
		if cd.Comparable == nil {
			continue
		}
		ip := cd.Comparable.(indexedPoint)
		out = append(out, Neighbor{Index: ip.idx, Point: ip.p, Distance: math.Sqrt(cd.Dist)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Index < out[j].Index
	})
	return out
}
