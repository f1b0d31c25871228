package l1cloud

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is a rigid-body transform p' = R·p + T.
// R is row-major: [r00,r01,r02, r10,r11,r12, r20,r21,r22].
type Transform struct {
	R [9]float64
	T Point
}

// IdentityRotation is the row-major 3x3 identity.
var IdentityRotation = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{R: IdentityRotation}
}

// RotationZYX builds a transform from yaw (Z), pitch (Y) and roll (X) angles
// in radians, applied in that order, followed by translation t.
func RotationZYX(yaw, pitch, roll float64, t Point) Transform {
	cy, sy := math.Cos(yaw), math.Sin(yaw)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cr, sr := math.Cos(roll), math.Sin(roll)
	return Transform{
		R: [9]float64{
			cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr,
			sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr,
			-sp, cp * sr, cp * cr,
		},
		T: t,
	}
}

// Rotate applies only the rotational part of t to v.
func (t Transform) Rotate(v Point) Point {
	r := &t.R
	return Point{
		X: r[0]*v.X + r[1]*v.Y + r[2]*v.Z,
		Y: r[3]*v.X + r[4]*v.Y + r[5]*v.Z,
		Z: r[6]*v.X + r[7]*v.Y + r[8]*v.Z,
	}
}

// Apply transforms a point.
func (t Transform) Apply(p Point) Point {
	return r3.Add(t.Rotate(p), t.T)
}

// ApplyAll transforms every point into a new slice.
func (t Transform) ApplyAll(points []Point) []Point {
	if len(points) == 0 {
		return nil
	}
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = t.Apply(p)
	}
	return out
}

// Compose returns the transform equivalent to applying o first and then t.
func (t Transform) Compose(o Transform) Transform {
	var r [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = t.R[i*3]*o.R[j] + t.R[i*3+1]*o.R[3+j] + t.R[i*3+2]*o.R[6+j]
		}
	}
	return Transform{R: r, T: t.Apply(o.T)}
}

// Inverse returns the inverse rigid transform.
func (t Transform) Inverse() Transform {
	r := t.R
	rt := [9]float64{
		r[0], r[3], r[6],
		r[1], r[4], r[7],
		r[2], r[5], r[8],
	}
	inv := Transform{R: rt}
	inv.T = r3.Scale(-1, inv.Rotate(t.T))
	return inv
}

// RotationAngle returns the magnitude of the rotation in radians. The
// atan2 form keeps full precision for angles near 0 and near π.
func (t Transform) RotationAngle() float64 {
	r := &t.R
	c := (r[0] + r[4] + r[8] - 1) / 2
	s := math.Sqrt(sq(r[7]-r[5])+sq(r[2]-r[6])+sq(r[3]-r[1])) / 2
	return math.Atan2(s, c)
}

func sq(v float64) float64 { return v * v }
