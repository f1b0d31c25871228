package l5matching

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
	"github.com/banshee-data/stdesc/internal/stdesc/l2planes"
)

const (
	maxICPIterations = 20
	// icpConvergence stops iterating once the update norm drops below it.
	icpConvergence = 1e-8
	// icpDamping is added to the normal equations, scaled by their mean
	// diagonal, so directions the planes do not constrain stay put.
	icpDamping = 1e-9
	// minPlanePairs is the fewest plane correspondences that count as an
	// alignment.
	minPlanePairs = 3
)

// planePair is one plane correspondence under the current transform.
type planePair struct {
	src, dst   int
	normalDiff float64 // l2planes.NormalDifference of the aligned normals
	distance   float64 // unsigned distance of the aligned centre to the target plane
}

// planeSet is a set of target planes indexed by centre.
type planeSet struct {
	planes  []l2planes.Plane
	centres *l1cloud.NeighborIndex
}

func newPlaneSet(planes []l2planes.Plane) planeSet {
	centres := make([]l1cloud.Point, len(planes))
	for i, pl := range planes {
		centres[i] = pl.Center
	}
	return planeSet{planes: planes, centres: l1cloud.NewNeighborIndex(centres)}
}

// alignment is the outcome of plane ICP.
type alignment struct {
	transform l1cloud.Transform
	pairs     []planePair
	residual  float64 // RMS point-to-plane distance over pairs
}

// correspond pairs every source plane with the target plane whose centre is
// nearest to the transformed source centre, within radius.
func correspond(src []l2planes.Plane, target planeSet, tf l1cloud.Transform, radius float64) []planePair {
	var pairs []planePair
	for i, pl := range src {
		c := tf.Apply(pl.Center)
		nb, ok := target.centres.Nearest(c)
		if !ok || nb.Distance > radius {
			continue
		}
		dst := target.planes[nb.Index]
		pairs = append(pairs, planePair{
			src:        i,
			dst:        nb.Index,
			normalDiff: l2planes.NormalDifference(tf.Rotate(pl.Normal), dst.Normal),
			distance:   dst.Distance(c),
		})
	}
	return pairs
}

// alignPlanes refines init by point-to-plane ICP of the source plane centres
// against the target planes. Each Gauss-Newton step linearises the rotation
// around the current estimate and solves the damped 6x6 normal equations.
func alignPlanes(src []l2planes.Plane, target planeSet, init l1cloud.Transform, radius float64) (alignment, error) {
	tf := init
	for iter := 0; iter < maxICPIterations; iter++ {
		pairs := correspond(src, target, tf, radius)
		if len(pairs) < minPlanePairs {
			return alignment{}, fmt.Errorf("%w: %d plane pairs", ErrDegenerateCorrespondences, len(pairs))
		}

		ata := mat.NewSymDense(6, nil)
		atb := mat.NewVecDense(6, nil)
		for _, pp := range pairs {
			s := tf.Apply(src[pp.src].Center)
			dst := target.planes[pp.dst]
			n := dst.Normal
			r := r3.Dot(n, r3.Sub(s, dst.Center))
			sn := r3.Cross(s, n)
			j := [6]float64{sn.X, sn.Y, sn.Z, n.X, n.Y, n.Z}
			for a := 0; a < 6; a++ {
				atb.SetVec(a, atb.AtVec(a)-j[a]*r)
				for b := a; b < 6; b++ {
					ata.SetSym(a, b, ata.At(a, b)+j[a]*j[b])
				}
			}
		}
		var trace float64
		for a := 0; a < 6; a++ {
			trace += ata.At(a, a)
		}
		lambda := icpDamping * (trace/6 + 1)
		for a := 0; a < 6; a++ {
			ata.SetSym(a, a, ata.At(a, a)+lambda)
		}

		var chol mat.Cholesky
		if !chol.Factorize(ata) {
			return alignment{}, fmt.Errorf("%w: singular normal equations", ErrDegenerateCorrespondences)
		}
		var x mat.VecDense
		if err := chol.SolveVecTo(&x, atb); err != nil {
			return alignment{}, fmt.Errorf("%w: %v", ErrDegenerateCorrespondences, err)
		}

		step := l1cloud.Transform{
			R: rodrigues(r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}),
			T: r3.Vec{X: x.AtVec(3), Y: x.AtVec(4), Z: x.AtVec(5)},
		}
		tf = step.Compose(tf)
		if mat.Norm(&x, 2) < icpConvergence {
			break
		}
	}

	pairs := correspond(src, target, tf, radius)
	if len(pairs) < minPlanePairs {
		return alignment{}, fmt.Errorf("%w: %d plane pairs after alignment", ErrDegenerateCorrespondences, len(pairs))
	}
	var sq float64
	for _, pp := range pairs {
		sq += pp.distance * pp.distance
	}
	return alignment{
		transform: tf,
		pairs:     pairs,
		residual:  math.Sqrt(sq / float64(len(pairs))),
	}, nil
}

// rodrigues returns the row-major rotation matrix of rotation vector w.
func rodrigues(w r3.Vec) [9]float64 {
	theta := r3.Norm(w)
	if theta < 1e-12 {
		return [9]float64{
			1, -w.Z, w.Y,
			w.Z, 1, -w.X,
			-w.Y, w.X, 1,
		}
	}
	k := r3.Scale(1/theta, w)
	s, c := math.Sin(theta), math.Cos(theta)
	t := 1 - c
	return [9]float64{
		c + k.X*k.X*t, k.X*k.Y*t - k.Z*s, k.X*k.Z*t + k.Y*s,
		k.Y*k.X*t + k.Z*s, c + k.Y*k.Y*t, k.Y*k.Z*t - k.X*s,
		k.Z*k.X*t - k.Y*s, k.Z*k.Y*t + k.X*s, c + k.Z*k.Z*t,
	}
}
