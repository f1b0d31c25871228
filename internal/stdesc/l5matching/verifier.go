package l5matching

import (
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
	"github.com/banshee-data/stdesc/internal/stdesc/l2planes"
	"github.com/banshee-data/stdesc/internal/stdesc/l4descriptors"
)

// Params configures candidate search and verification.
type Params struct {
	SkipNearNum      int     // frames closer than this (plus one) are never candidates
	CandidateNum     int     // candidates kept for verification
	BlockSize        int     // consecutive frames coalesced into one place; <= 1 disables
	SideResolution   float64 // resolution the descriptor codes were built with
	RoughDistance    float64 // max relative side-length difference of a coarse match
	VertexDifference float64 // max distance between vertex attribute triples
	ICPThreshold     float64 // max RMS point-to-plane residual after ICP
	NormalThreshold  float64 // max mean normal difference of plane pairs
	// DistanceThreshold bounds the mean point-to-plane distance of plane
	// pairs; it is also the vertex tolerance of pose hypotheses.
	DistanceThreshold float64
	// CorrespondenceRadius is the largest centre distance of an ICP plane
	// correspondence.
	CorrespondenceRadius float64
	Workers              int // parallel candidate verifications; <= 0 uses GOMAXPROCS
}

// PlaneSource provides the per-voxel planes of earlier frames.
type PlaneSource interface {
	FramePlanes(frameID int) []l2planes.Plane
}

// Query is the current frame as seen by the verifier.
type Query struct {
	FrameID     int
	Descriptors []l4descriptors.TriangleDescriptor
	Planes      []l2planes.Plane
}

// Match is a verified loop closure.
type Match struct {
	FrameID int
	Votes   int
	// MatchCount is the number of query planes whose aligned counterpart
	// agrees in both normal and point-to-plane distance.
	MatchCount int
	// Score is MatchCount over the number of query planes.
	Score    float64
	Residual float64
	// Transform maps query coordinates into the matched frame.
	Transform l1cloud.Transform
}

// Outcome summarises one Verify call.
type Outcome struct {
	Match      Match
	Found      bool
	Candidates int // candidates that reached verification
	Degenerate int // candidates rejected for numerical degeneracy
}

// verdict is the outcome of verifying one candidate.
type verdict struct {
	match Match
	ok    bool
	err   error
}

// Verifier decides loop closures against a descriptor index. It only reads
// the index and the plane source.
type Verifier struct {
	p      Params
	index  *l4descriptors.Index
	planes PlaneSource
}

// NewVerifier returns a verifier over index whose earlier frames' planes are
// served by planes.
func NewVerifier(p Params, index *l4descriptors.Index, planes PlaneSource) *Verifier {
	return &Verifier{p: p, index: index, planes: planes}
}

// Verify returns the first candidate, in rank order, that passes geometric
// verification. Candidates are verified concurrently; the outcome does not
// depend on completion order.
func (v *Verifier) Verify(q Query) Outcome {
	cands := v.Candidates(q)
	if len(cands) == 0 {
		return Outcome{}
	}

	workers := v.p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	verdicts := make([]verdict, len(cands))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, c := range cands {
		i, c := i, c
		g.Go(func() error {
			verdicts[i] = v.verify(q, c)
			return nil
		})
	}
	_ = g.Wait() // rejections are recorded per verdict

	out := Outcome{Candidates: len(cands)}
	for _, vd := range verdicts {
		if errors.Is(vd.err, ErrDegenerateCorrespondences) {
			out.Degenerate++
		}
	}
	for _, vd := range verdicts {
		if vd.ok {
			out.Match, out.Found = vd.match, true
			break
		}
	}
	return out
}

// verify runs pose recovery and plane ICP for one candidate.
func (v *Verifier) verify(q Query, c Candidate) verdict {
	init, _, err := recoverPose(c.Pairs, v.p.DistanceThreshold)
	if err != nil {
		return verdict{err: err}
	}
	if len(q.Planes) == 0 {
		return verdict{}
	}
	target := newPlaneSet(v.planes.FramePlanes(c.FrameID))
	al, err := alignPlanes(q.Planes, target, init, v.p.CorrespondenceRadius)
	if err != nil {
		return verdict{err: err}
	}

	var normalSum, distSum float64
	matched := 0
	for _, pp := range al.pairs {
		normalSum += pp.normalDiff
		distSum += pp.distance
		if pp.normalDiff < v.p.NormalThreshold && pp.distance < v.p.DistanceThreshold {
			matched++
		}
	}
	n := float64(len(al.pairs))
	ok := al.residual < v.p.ICPThreshold &&
		normalSum/n < v.p.NormalThreshold &&
		distSum/n < v.p.DistanceThreshold &&
		matched >= minPlanePairs

	return verdict{
		ok: ok,
		match: Match{
			FrameID:    c.FrameID,
			Votes:      c.Votes,
			MatchCount: matched,
			Score:      float64(matched) / float64(len(q.Planes)),
			Residual:   al.residual,
			Transform:  al.transform,
		},
	}
}
