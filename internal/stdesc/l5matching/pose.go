package l5matching

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
)

// ErrDegenerateCorrespondences is returned when a set of correspondences
// cannot determine a unique rigid transform.
var ErrDegenerateCorrespondences = errors.New("degenerate correspondences")

const (
	// rankTolerance bounds the ratio of the second to the first singular
	// value of the cross-covariance; below it the points are collinear.
	rankTolerance = 1e-9

	// maxPoseHypotheses caps the number of matched triangles that seed a
	// pose hypothesis per candidate.
	maxPoseHypotheses = 50
)

// SolveRigid returns the rigid transform T minimising Σ|T(src[i]) - dst[i]|²
// (Kabsch). At least three non-collinear correspondences are required.
func SolveRigid(src, dst []l1cloud.Point) (l1cloud.Transform, error) {
	if len(src) != len(dst) {
		return l1cloud.Transform{}, fmt.Errorf("%w: %d source and %d target points", ErrDegenerateCorrespondences, len(src), len(dst))
	}
	if len(src) < 3 {
		return l1cloud.Transform{}, fmt.Errorf("%w: %d correspondences", ErrDegenerateCorrespondences, len(src))
	}
	cs, _ := l1cloud.Centroid(src)
	cd, _ := l1cloud.Centroid(dst)

	h := mat.NewDense(3, 3, nil)
	for i := range src {
		a := r3.Sub(src[i], cs)
		b := r3.Sub(dst[i], cd)
		av := [3]float64{a.X, a.Y, a.Z}
		bv := [3]float64{b.X, b.Y, b.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+av[r]*bv[c])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return l1cloud.Transform{}, fmt.Errorf("%w: SVD did not converge", ErrDegenerateCorrespondences)
	}
	sv := svd.Values(nil)
	if sv[0] == 0 || sv[1] < rankTolerance*sv[0] {
		return l1cloud.Transform{}, fmt.Errorf("%w: collinear points", ErrDegenerateCorrespondences)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// R = V·diag(1, 1, d)·Uᵀ, with d = ±1 removing reflections.
	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vut) < 0 {
		d = -1
	}
	var vd, rot mat.Dense
	vd.Mul(&v, mat.NewDiagDense(3, []float64{1, 1, d}))
	rot.Mul(&vd, u.T())

	var tf l1cloud.Transform
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			tf.R[r*3+c] = rot.At(r, c)
		}
	}
	tf.T = r3.Sub(cd, tf.Rotate(cs))
	return tf, nil
}

// vertexOrderTolerance is the relative side-length difference under which
// the vertices opposite two sides may swap between observations.
const vertexOrderTolerance = 1e-3

var (
	identityOrder = [][3]int{{0, 1, 2}}
	swapFirst     = [][3]int{{0, 1, 2}, {1, 0, 2}}
	swapLast      = [][3]int{{0, 1, 2}, {0, 2, 1}}
	allOrders     = [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
)

// vertexOrders lists the orders of pr.Match's vertices that may correspond
// to pr.Query's vertices 0, 1 and 2, identity first.
func vertexOrders(pr Pair) [][3]int {
	q := pr.Query.Tied(vertexOrderTolerance)
	m := pr.Match.Tied(vertexOrderTolerance)
	first, last := q[0] || m[0], q[1] || m[1]
	switch {
	case first && last:
		return allOrders
	case first:
		return swapFirst
	case last:
		return swapLast
	}
	return identityOrder
}

func matchVertices(pr Pair, order [3]int) []l1cloud.Point {
	v := pr.Match.Vertices
	return []l1cloud.Point{v[order[0]], v[order[1]], v[order[2]]}
}

// inlier is a pair that agrees with a hypothesis under a vertex order.
type inlier struct {
	pair  int
	order [3]int
}

// recoverPose estimates the transform from query to candidate coordinates.
// Each sampled pair seeds a hypothesis from its three vertices, once per
// admissible vertex order; the hypothesis under which most pairs land within
// tolerance wins and is refit on all of its inlier vertices. It returns the
// number of inlier pairs.
func recoverPose(pairs []Pair, tolerance float64) (l1cloud.Transform, int, error) {
	if len(pairs) == 0 {
		return l1cloud.Transform{}, 0, fmt.Errorf("%w: no matched triangles", ErrDegenerateCorrespondences)
	}

	stride := len(pairs)/maxPoseHypotheses + 1
	var (
		best        l1cloud.Transform
		bestInliers []inlier
	)
	for i := 0; i < len(pairs); i += stride {
		for _, order := range vertexOrders(pairs[i]) {
			tf, err := SolveRigid(pairs[i].Query.Vertices[:], matchVertices(pairs[i], order))
			if err != nil {
				continue
			}
			var inliers []inlier
			for j, pr := range pairs {
				if o, ok := pairAgrees(tf, pr, tolerance); ok {
					inliers = append(inliers, inlier{pair: j, order: o})
				}
			}
			if len(inliers) > len(bestInliers) {
				best, bestInliers = tf, inliers
			}
		}
	}
	if len(bestInliers) == 0 {
		return l1cloud.Transform{}, 0, fmt.Errorf("%w: no consistent triangle pair", ErrDegenerateCorrespondences)
	}

	src := make([]l1cloud.Point, 0, 3*len(bestInliers))
	dst := make([]l1cloud.Point, 0, 3*len(bestInliers))
	for _, in := range bestInliers {
		src = append(src, pairs[in.pair].Query.Vertices[:]...)
		dst = append(dst, matchVertices(pairs[in.pair], in.order)...)
	}
	if refined, err := SolveRigid(src, dst); err == nil {
		best = refined
	}
	return best, len(bestInliers), nil
}

// pairAgrees reports the first admissible vertex order under which every
// vertex of pr.Query lands within tolerance of its match.
func pairAgrees(tf l1cloud.Transform, pr Pair, tolerance float64) ([3]int, bool) {
	for _, order := range vertexOrders(pr) {
		agrees := true
		for k := range pr.Query.Vertices {
			if l1cloud.Distance(tf.Apply(pr.Query.Vertices[k]), pr.Match.Vertices[order[k]]) >= tolerance {
				agrees = false
				break
			}
		}
		if agrees {
			return order, true
		}
	}
	return [3]int{}, false
}
