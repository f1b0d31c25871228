package l3keypoints

import (
	"sort"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
	"github.com/banshee-data/stdesc/internal/stdesc/l2planes"
)

// Params configures keypoint extraction.
type Params struct {
	Resolution        float64 // raster pixel edge (metres)
	MinDistance       float64 // near edge of the distance band above a plane
	MaxDistance       float64 // far edge of the distance band
	ResponseThreshold float64 // pixels must exceed this response
	SuppressionRadius float64 // non-maximum suppression radius (metres)
	MaxKeypoints      int     // cap after suppression
}

// Keypoint is a salient 3D location near the boundary of a planar region.
type Keypoint struct {
	Position l1cloud.Point
	Normal   l1cloud.Point // normal of the region the keypoint was found on
	Response float64
	Region   int // index into the regions slice passed to Extract
}

// Extract finds keypoints on every planar region of a scan. Candidates from
// all regions compete in a single suppression pass; the strongest survive.
// Zero regions or zero candidates return nil.
func Extract(points []l1cloud.Point, regions []l2planes.Plane, p Params) []Keypoint {
	if len(points) == 0 || len(regions) == 0 || p.Resolution <= 0 {
		return nil
	}

	var candidates []Keypoint
	for ri, region := range regions {
		r := project(points, region, p.Resolution, p.MinDistance, p.MaxDistance)
		for _, px := range r.peaks(p.ResponseThreshold) {
			candidates = append(candidates, Keypoint{
				Position: r.position(px),
				Normal:   region.Normal,
				Response: r.response(px),
				Region:   ri,
			})
		}
	}

	kept := Suppress(candidates, p.SuppressionRadius)
	if p.MaxKeypoints > 0 && len(kept) > p.MaxKeypoints {
		kept = kept[:p.MaxKeypoints]
	}
	return kept
}

// Suppress performs greedy non-maximum suppression: candidates are visited
// by descending response (ties keep input order) and dropped when a kept
// keypoint lies within radius. The result is ordered by descending response.
func Suppress(candidates []Keypoint, radius float64) []Keypoint {
	if len(candidates) == 0 {
		return nil
	}
	ordered := make([]Keypoint, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Response > ordered[j].Response
	})

	kept := make([]Keypoint, 0, len(ordered))
	for _, c := range ordered {
		suppressed := false
		for _, k := range kept {
			if l1cloud.Distance(c.Position, k.Position) < radius {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}
