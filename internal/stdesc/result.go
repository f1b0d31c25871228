package stdesc

import (
	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
	"github.com/banshee-data/stdesc/internal/stdesc/l2planes"
	"github.com/banshee-data/stdesc/internal/stdesc/l3keypoints"
	"github.com/banshee-data/stdesc/internal/stdesc/l4descriptors"
)

// NoMatch is the MatchFrameID of a frame without a loop closure.
const NoMatch = -1

// LoopClosureResult is the decision recorded for one frame.
type LoopClosureResult struct {
	FrameID int
	// MatchFrameID is the earlier frame this frame revisits, or NoMatch.
	MatchFrameID int
	// MatchCount is the number of verified plane correspondences.
	MatchCount int
	// Score is MatchCount normalised by the frame's plane count, in [0, 1].
	Score float64
	// Votes is the coarse descriptor vote count of the matched candidate.
	Votes int
	// Transform maps this frame's coordinates into the matched frame.
	// Identity when unmatched.
	Transform l1cloud.Transform
}

// Matched reports whether the frame closed a loop.
func (r LoopClosureResult) Matched() bool { return r.MatchFrameID != NoMatch }

// Frame is what the manager retains of a processed scan.
type Frame struct {
	ID          int
	PointCount  int              // after downsampling
	Planes      []l2planes.Plane // per-voxel planes used for verification
	Regions     int
	Keypoints   []l3keypoints.Keypoint
	Descriptors []l4descriptors.TriangleDescriptor
}
