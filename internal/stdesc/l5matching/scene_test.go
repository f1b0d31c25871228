package l5matching

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
	"github.com/banshee-data/stdesc/internal/stdesc/l2planes"
	"github.com/banshee-data/stdesc/internal/stdesc/l3keypoints"
	"github.com/banshee-data/stdesc/internal/stdesc/l4descriptors"
)

// planeMap serves frame planes from memory.
type planeMap map[int][]l2planes.Plane

func (m planeMap) FramePlanes(id int) []l2planes.Plane { return m[id] }

var cornerPositions = []l1cloud.Point{
	{X: 0, Y: 0, Z: 0},
	{X: 6, Y: 1, Z: 0.5},
	{X: 2, Y: 7, Z: 1.0},
	{X: -5, Y: 4, Z: 0.2},
	{X: -3, Y: -6, Z: 0.8},
	{X: 8, Y: -5, Z: 1.5},
	{X: 11, Y: 4, Z: 0.3},
	{X: -9, Y: -2, Z: 1.1},
}

func corners() []l3keypoints.Keypoint {
	out := make([]l3keypoints.Keypoint, len(cornerPositions))
	for i, p := range cornerPositions {
		out[i] = l3keypoints.Keypoint{Position: p, Normal: l1cloud.Point{Z: 1}, Response: 10}
	}
	return out
}

func randomCorners(seed int64) []l3keypoints.Keypoint {
	rng := rand.New(rand.NewSource(seed))
	out := make([]l3keypoints.Keypoint, 8)
	for i := range out {
		out[i] = l3keypoints.Keypoint{
			Position: l1cloud.Point{X: rng.Float64()*30 - 15, Y: rng.Float64()*30 - 15, Z: rng.Float64() * 2},
			Normal:   l1cloud.Point{Z: 1},
			Response: 10,
		}
	}
	return out
}

func transformKeypoints(tf l1cloud.Transform, kps []l3keypoints.Keypoint) []l3keypoints.Keypoint {
	out := make([]l3keypoints.Keypoint, len(kps))
	for i, kp := range kps {
		out[i] = kp
		out[i].Position = tf.Apply(kp.Position)
		out[i].Normal = tf.Rotate(kp.Normal)
	}
	return out
}

// roomPlanes is a ground grid bounded by three walls of different
// orientations, so every rigid degree of freedom is constrained.
func roomPlanes() []l2planes.Plane {
	var out []l2planes.Plane
	add := func(c, n l1cloud.Point) {
		out = append(out, l2planes.Plane{Center: c, Normal: n, PointCount: 40})
	}
	for x := -8.0; x <= 8; x += 2 {
		for y := -8.0; y <= 8; y += 2 {
			add(l1cloud.Point{X: x, Y: y, Z: -1.7}, l1cloud.Point{Z: 1})
		}
	}
	for y := -6.0; y <= 6; y += 2 {
		for _, z := range []float64{-0.5, 1.5} {
			add(l1cloud.Point{X: 10, Y: y, Z: z}, l1cloud.Point{X: 1})
			add(l1cloud.Point{X: y, Y: 10, Z: z}, l1cloud.Point{Y: 1})
		}
	}
	diag := r3.Unit(l1cloud.Point{X: 1, Y: 1})
	for k := 0.0; k < 4; k++ {
		add(l1cloud.Point{X: -12 + 1.5*k, Y: 6 - 1.5*k, Z: 0.5}, diag)
	}
	return out
}

func transformPlanes(tf l1cloud.Transform, planes []l2planes.Plane) []l2planes.Plane {
	out := make([]l2planes.Plane, len(planes))
	for i, pl := range planes {
		out[i] = pl
		out[i].Center = tf.Apply(pl.Center)
		out[i].Normal = tf.Rotate(pl.Normal)
	}
	return out
}

func descriptorParams() l4descriptors.Params {
	return l4descriptors.Params{NeighborCount: 10, MinSide: 2, MaxSide: 50, SideResolution: 0.2}
}

func testParams() Params {
	return Params{
		SkipNearNum:          3,
		CandidateNum:         5,
		BlockSize:            1,
		SideResolution:       0.2,
		RoughDistance:        0.01,
		VertexDifference:     0.5,
		ICPThreshold:         0.4,
		NormalThreshold:      0.2,
		DistanceThreshold:    0.5,
		CorrespondenceRadius: 2,
		Workers:              4,
	}
}

func build(t *testing.T, kps []l3keypoints.Keypoint, frame int) []l4descriptors.TriangleDescriptor {
	t.Helper()
	d := l4descriptors.Build(kps, frame, descriptorParams())
	require.NotEmpty(t, d)
	return d
}

// requireNearIdentity fails unless tf is the identity within tol.
func requireNearIdentity(t *testing.T, tf l1cloud.Transform, tol float64) {
	t.Helper()
	require.Less(t, tf.RotationAngle(), tol, "rotation %v", tf.R)
	require.Less(t, r3.Norm(tf.T), tol, "translation %v", tf.T)
}

func det3(r [9]float64) float64 {
	return r[0]*(r[4]*r[8]-r[5]*r[7]) - r[1]*(r[3]*r[8]-r[5]*r[6]) + r[2]*(r[3]*r[7]-r[4]*r[6])
}

