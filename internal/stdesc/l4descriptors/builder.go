package l4descriptors

import (
	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
	"github.com/banshee-data/stdesc/internal/stdesc/l3keypoints"
)

// Params configures descriptor construction.
type Params struct {
	NeighborCount  int     // nearest keypoints considered per keypoint
	MinSide        float64 // every side must be at least this long
	MaxSide        float64 // and at most this long
	SideResolution float64 // quantisation step of the side-length code
}

// Build forms triangle descriptors from keypoint triples. For each keypoint
// its NeighborCount nearest other keypoints are paired up; a triple is kept
// when all three sides lie within [MinSide, MaxSide]. Each unordered triple
// is emitted at most once, in a deterministic order.
func Build(keypoints []l3keypoints.Keypoint, frameID int, p Params) []TriangleDescriptor {
	if len(keypoints) < 3 || p.NeighborCount < 2 || p.SideResolution <= 0 {
		return nil
	}

	positions := make([]l1cloud.Point, len(keypoints))
	for i, kp := range keypoints {
		positions[i] = kp.Position
	}
	index := l1cloud.NewNeighborIndex(positions)

	seen := make(map[[3]int]struct{})
	var out []TriangleDescriptor
	for i, kp := range keypoints {
		near := index.KNearest(kp.Position, p.NeighborCount+1)
		others := near[:0:0]
		for _, n := range near {
			if n.Index != i {
				others = append(others, n)
			}
		}
		if len(others) > p.NeighborCount {
			others = others[:p.NeighborCount]
		}

		for m := 0; m < len(others); m++ {
			for n := m + 1; n < len(others); n++ {
				a, b := others[m].Index, others[n].Index
				key := sortedTriple(i, a, b)
				if _, dup := seen[key]; dup {
					continue
				}
				if !sidesInRange(positions[i], positions[a], positions[b], p.MinSide, p.MaxSide) {
					continue
				}
				seen[key] = struct{}{}

				d, ok := Canonicalize(
					[3]l1cloud.Point{positions[i], positions[a], positions[b]},
					[3]l1cloud.Point{kp.Normal, keypoints[a].Normal, keypoints[b].Normal},
					frameID, p.SideResolution,
				)
				if ok {
					out = append(out, d)
				}
			}
		}
	}
	return out
}

func sidesInRange(a, b, c l1cloud.Point, lo, hi float64) bool {
	for _, s := range [3]float64{l1cloud.Distance(a, b), l1cloud.Distance(a, c), l1cloud.Distance(b, c)} {
		if s < lo || s > hi {
			return false
		}
	}
	return true
}

func sortedTriple(a, b, c int) [3]int {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return [3]int{a, b, c}
}
