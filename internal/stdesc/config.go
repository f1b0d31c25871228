package stdesc

import (
	"fmt"
	"math"

	"github.com/banshee-data/stdesc/internal/stdesc/l2planes"
	"github.com/banshee-data/stdesc/internal/stdesc/l3keypoints"
	"github.com/banshee-data/stdesc/internal/stdesc/l4descriptors"
	"github.com/banshee-data/stdesc/internal/stdesc/l5matching"
)

// Config is the complete, immutable parameter set of a Manager.
//
// Matching.SideResolution and Matching.CorrespondenceRadius are derived by
// NewManager from Descriptors.SideResolution and Planes.VoxelSize when left
// zero.
type Config struct {
	DownsampleSize float64 // leaf size of the first voxel downsample (metres)
	Planes         l2planes.Params
	Keypoints      l3keypoints.Params
	Descriptors    l4descriptors.Params
	Matching       l5matching.Params

	// LogEvery logs a frame summary every LogEvery frames; 0 logs only loop
	// closures.
	LogEvery int
}

// Validate reports the first out-of-range parameter. NaN is out of range
// for every parameter.
func (c Config) Validate() error {
	if name, ok := c.firstNaN(); ok {
		return invalid("%s is NaN", name)
	}
	switch {
	case c.DownsampleSize <= 0:
		return invalid("downsample size must be positive, got %g", c.DownsampleSize)

	case c.Planes.VoxelSize <= 0:
		return invalid("voxel size must be positive, got %g", c.Planes.VoxelSize)
	case c.Planes.MinVoxelPoints < 3:
		return invalid("voxel init num must be at least 3, got %d", c.Planes.MinVoxelPoints)
	case c.Planes.PlanarityThreshold <= 0:
		return invalid("plane detection threshold must be positive, got %g", c.Planes.PlanarityThreshold)
	case c.Planes.MergeNormalThreshold < 0:
		return invalid("plane merge normal threshold must be non-negative, got %g", c.Planes.MergeNormalThreshold)

	case c.Keypoints.Resolution <= 0:
		return invalid("projection resolution must be positive, got %g", c.Keypoints.Resolution)
	case c.Keypoints.MinDistance < 0 || c.Keypoints.MinDistance > c.Keypoints.MaxDistance:
		return invalid("projection band [%g, %g] is invalid", c.Keypoints.MinDistance, c.Keypoints.MaxDistance)
	case c.Keypoints.ResponseThreshold < 0:
		return invalid("corner threshold must be non-negative, got %g", c.Keypoints.ResponseThreshold)
	case c.Keypoints.SuppressionRadius < 0:
		return invalid("non-max suppression radius must be non-negative, got %g", c.Keypoints.SuppressionRadius)
	case c.Keypoints.MaxKeypoints < 1:
		return invalid("maximum corner num must be at least 1, got %d", c.Keypoints.MaxKeypoints)

	case c.Descriptors.NeighborCount < 2:
		return invalid("descriptor near num must be at least 2, got %d", c.Descriptors.NeighborCount)
	case c.Descriptors.MinSide < 0 || c.Descriptors.MinSide > c.Descriptors.MaxSide:
		return invalid("descriptor length band [%g, %g] is invalid", c.Descriptors.MinSide, c.Descriptors.MaxSide)
	case c.Descriptors.SideResolution <= 0:
		return invalid("side resolution must be positive, got %g", c.Descriptors.SideResolution)

	case c.Matching.SkipNearNum < 0:
		return invalid("skip near num must be non-negative, got %d", c.Matching.SkipNearNum)
	case c.Matching.CandidateNum < 1:
		return invalid("candidate num must be at least 1, got %d", c.Matching.CandidateNum)
	case c.Matching.BlockSize < 1:
		return invalid("sub frame num must be at least 1, got %d", c.Matching.BlockSize)
	case c.Matching.RoughDistance <= 0:
		return invalid("rough distance threshold must be positive, got %g", c.Matching.RoughDistance)
	case c.Matching.VertexDifference <= 0:
		return invalid("vertex diff threshold must be positive, got %g", c.Matching.VertexDifference)
	case c.Matching.ICPThreshold <= 0:
		return invalid("icp threshold must be positive, got %g", c.Matching.ICPThreshold)
	case c.Matching.NormalThreshold <= 0:
		return invalid("normal threshold must be positive, got %g", c.Matching.NormalThreshold)
	case c.Matching.DistanceThreshold <= 0:
		return invalid("distance threshold must be positive, got %g", c.Matching.DistanceThreshold)
	case c.Matching.SideResolution != 0 && c.Matching.SideResolution != c.Descriptors.SideResolution:
		return invalid("matching side resolution %g differs from descriptor side resolution %g",
			c.Matching.SideResolution, c.Descriptors.SideResolution)

	case c.LogEvery < 0:
		return invalid("log interval must be non-negative, got %d", c.LogEvery)
	}
	return nil
}

func (c Config) firstNaN() (string, bool) {
	fields := []struct {
		name string
		v    float64
	}{
		{"downsample size", c.DownsampleSize},
		{"voxel size", c.Planes.VoxelSize},
		{"plane detection threshold", c.Planes.PlanarityThreshold},
		{"plane merge normal threshold", c.Planes.MergeNormalThreshold},
		{"projection resolution", c.Keypoints.Resolution},
		{"projection min distance", c.Keypoints.MinDistance},
		{"projection max distance", c.Keypoints.MaxDistance},
		{"corner threshold", c.Keypoints.ResponseThreshold},
		{"non-max suppression radius", c.Keypoints.SuppressionRadius},
		{"descriptor min length", c.Descriptors.MinSide},
		{"descriptor max length", c.Descriptors.MaxSide},
		{"side resolution", c.Descriptors.SideResolution},
		{"matching side resolution", c.Matching.SideResolution},
		{"rough distance threshold", c.Matching.RoughDistance},
		{"vertex diff threshold", c.Matching.VertexDifference},
		{"icp threshold", c.Matching.ICPThreshold},
		{"normal threshold", c.Matching.NormalThreshold},
		{"distance threshold", c.Matching.DistanceThreshold},
		{"correspondence radius", c.Matching.CorrespondenceRadius},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) {
			return f.name, true
		}
	}
	return "", false
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

// withDerived fills parameters that follow from others.
func (c Config) withDerived() Config {
	if c.Matching.SideResolution == 0 {
		c.Matching.SideResolution = c.Descriptors.SideResolution
	}
	if c.Matching.CorrespondenceRadius <= 0 {
		c.Matching.CorrespondenceRadius = c.Planes.VoxelSize
	}
	return c
}
