package l2planes

import (
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
)

// fitChunkSize is the number of voxels fitted per worker task.
const fitChunkSize = 64

// Params configures plane extraction.
type Params struct {
	VoxelSize            float64 // voxel edge length (metres)
	MinVoxelPoints       int     // voxels with fewer points are never planes
	PlanarityThreshold   float64 // accept when λmin/λmid is below this
	MergeNormalThreshold float64 // adjacent planes merge when NormalDifference is below this
	Workers              int     // parallel fitting workers; <= 0 uses GOMAXPROCS
}

// Result holds the planes extracted from one scan.
type Result struct {
	// Voxels holds one plane per accepted voxel in ascending key order.
	Voxels []Plane
	// Regions holds merged planar regions ordered by point count
	// (descending), then by their smallest voxel key.
	Regions []Plane
}

// Extract detects planar voxels in points and merges face-adjacent voxels
// with similar normals into regions. A cloud without planar voxels yields an
// empty Result.
func Extract(points []l1cloud.Point, p Params) Result {
	if len(points) == 0 || p.VoxelSize <= 0 {
		return Result{}
	}
	buckets := l1cloud.Bucketize(points, p.VoxelSize)

	candidates := buckets[:0:0]
	for _, b := range buckets {
		if len(b.Points) >= p.MinVoxelPoints {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return Result{}
	}

	fitted := fitAll(candidates, p)

	var accepted []voxelFit
	for _, f := range fitted {
		if f.ok && f.plane.planar(p.PlanarityThreshold) {
			accepted = append(accepted, f)
		}
	}
	if len(accepted) == 0 {
		return Result{}
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].key.Less(accepted[j].key) })

	res := Result{Voxels: make([]Plane, len(accepted))}
	for i, f := range accepted {
		res.Voxels[i] = f.plane
	}
	res.Regions = mergeRegions(accepted, p.MergeNormalThreshold)
	return res
}

// voxelFit is the fitting outcome of one candidate voxel.
type voxelFit struct {
	key   l1cloud.VoxelKey
	m     moments
	plane Plane
	ok    bool
}

// fitAll fits every candidate voxel. Voxels are independent, so chunks run
// in parallel; results are written by index and therefore keep input order.
func fitAll(candidates []l1cloud.VoxelBucket, p Params) []voxelFit {
	out := make([]voxelFit, len(candidates))
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(candidates); start += fitChunkSize {
		start := start
		end := min(start+fitChunkSize, len(candidates))
		g.Go(func() error {
			for i := start; i < end; i++ {
				b := candidates[i]
				m := momentsOf(b.Points)
				pl, ok := m.fit()
				pl.Voxels = []l1cloud.VoxelKey{b.Key}
				out[i] = voxelFit{key: b.Key, m: m, plane: pl, ok: ok}
			}
			return nil
		})
	}
	_ = g.Wait() // fitting never fails; degenerate voxels are marked !ok
	return out
}

// mergeRegions unions face-adjacent accepted voxels whose normals agree and
// refits each connected component. accepted must be sorted by key.
func mergeRegions(accepted []voxelFit, normalThreshold float64) []Plane {
	byKey := make(map[l1cloud.VoxelKey]int, len(accepted))
	for i, f := range accepted {
		byKey[f.key] = i
	}

	ds := newDisjointSet(len(accepted))
	for i, f := range accepted {
		for _, nk := range f.key.Neighbors6() {
			j, ok := byKey[nk]
			if !ok || j <= i {
				continue
			}
			if NormalDifference(f.plane.Normal, accepted[j].plane.Normal) < normalThreshold {
				ds.union(i, j)
			}
		}
	}

	// Members are visited in key order, so each component's member list is
	// already sorted and its first member is its smallest key.
	components := make(map[int][]int)
	var roots []int
	for i := range accepted {
		r := ds.find(i)
		if _, ok := components[r]; !ok {
			roots = append(roots, r)
		}
		components[r] = append(components[r], i)
	}

	regions := make([]Plane, 0, len(roots))
	for _, r := range roots {
		members := components[r]
		var m moments
		keys := make([]l1cloud.VoxelKey, len(members))
		for k, idx := range members {
			m = m.merge(accepted[idx].m)
			keys[k] = accepted[idx].key
		}
		pl, ok := m.fit()
		if !ok {
			continue
		}
		pl.Voxels = keys
		regions = append(regions, pl)
	}

	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].PointCount != regions[j].PointCount {
			return regions[i].PointCount > regions[j].PointCount
		}
		return regions[i].Voxels[0].Less(regions[j].Voxels[0])
	})
	return regions
}
