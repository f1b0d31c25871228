package l1cloud

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// VoxelKey identifies a cell of an axis-aligned voxel grid by the floored
// quotient of each coordinate by the voxel edge length.
type VoxelKey struct {
	X, Y, Z int64
}

// KeyOf returns the voxel containing p for the given edge length.
func KeyOf(p Point, size float64) VoxelKey {
	return VoxelKey{
		X: int64(math.Floor(p.X / size)),
		Y: int64(math.Floor(p.Y / size)),
		Z: int64(math.Floor(p.Z / size)),
	}
}

// Neighbors6 returns the six face-adjacent voxel keys of k.
func (k VoxelKey) Neighbors6() [6]VoxelKey {
	return [6]VoxelKey{
		{k.X - 1, k.Y, k.Z}, {k.X + 1, k.Y, k.Z},
		{k.X, k.Y - 1, k.Z}, {k.X, k.Y + 1, k.Z},
		{k.X, k.Y, k.Z - 1}, {k.X, k.Y, k.Z + 1},
	}
}

// Less orders keys lexicographically by X, Y then Z.
func (k VoxelKey) Less(o VoxelKey) bool {
	if k.X != o.X {
		return k.X < o.X
	}
	if k.Y != o.Y {
		return k.Y < o.Y
	}
	return k.Z < o.Z
}

// VoxelBucket is the set of points that fell into one voxel.
type VoxelBucket struct {
	Key    VoxelKey
	Points []Point
}

// Bucketize partitions points into voxels of the given edge length. Buckets
// are returned in order of first appearance so the result is deterministic
// for a given input order. Non-finite points are dropped.
func Bucketize(points []Point, size float64) []VoxelBucket {
	if len(points) == 0 || size <= 0 {
		return nil
	}
	index := make(map[VoxelKey]int, len(points)/4+1)
	var buckets []VoxelBucket
	for _, p := range points {
		if !IsFinite(p) {
			continue
		}
		k := KeyOf(p, size)
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, VoxelBucket{Key: k})
		}
		buckets[i].Points = append(buckets[i].Points, p)
	}
	return buckets
}

// VoxelDownsample reduces point density by replacing the members of each
// non-empty voxel with their centroid. Output order follows the first
// appearance of each voxel in the input.
//
// A non-positive leaf size returns a copy of the finite input points.
func VoxelDownsample(points []Point, leafSize float64) []Point {
	if len(points) == 0 {
		return nil
	}
	if leafSize <= 0 {
		out := make([]Point, 0, len(points))
		for _, p := range points {
			if IsFinite(p) {
				out = append(out, p)
			}
		}
		return out
	}

	// Running sums only; member slices are not retained.
	type acc struct {
		sum Point
		n   int
	}
	index := make(map[VoxelKey]int, len(points)/4+1)
	var accs []acc
	for _, p := range points {
		if !IsFinite(p) {
			continue
		}
		k := KeyOf(p, leafSize)
		i, ok := index[k]
		if !ok {
			i = len(accs)
			index[k] = i
			accs = append(accs, acc{})
		}
		accs[i].sum = r3.Add(accs[i].sum, p)
		accs[i].n++
	}

	out := make([]Point, len(accs))
	for i, a := range accs {
		out[i] = r3.Scale(1/float64(a.n), a.sum)
	}
	return out
}
