package l5matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/stdesc/internal/stdesc/l4descriptors"
)

func TestNeighbourCodes(t *testing.T) {
	d := l4descriptors.TriangleDescriptor{Sides: [3]float64{3, 4, 5}}
	d.Code = l4descriptors.Quantize(d.Sides, 0.2)
	codes := neighbourCodes(d, 0.2)

	assert.Contains(t, codes, d.Code)
	// Every face and edge neighbour is within 1.5 cells; corners (√3) are not.
	assert.Len(t, codes, 1+6+12)
	assert.NotContains(t, codes, l4descriptors.SideCode{A: d.Code.A + 1, B: d.Code.B + 1, C: d.Code.C + 1})
}

func TestCandidates_TemporalExclusion(t *testing.T) {
	ix := l4descriptors.NewIndex()
	descs := build(t, corners(), 0)
	ix.Insert(0, descs)
	ix.Insert(1, descs)

	v := NewVerifier(testParams(), ix, planeMap{})

	// skip 3: frame f may only match c with f - c > 3.
	assert.Empty(t, v.Candidates(Query{FrameID: 3, Descriptors: descs}))

	got := v.Candidates(Query{FrameID: 4, Descriptors: descs})
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].FrameID)

	got = v.Candidates(Query{FrameID: 5, Descriptors: descs})
	require.Len(t, got, 2)
	assert.Equal(t, []int{0, 1}, []int{got[0].FrameID, got[1].FrameID})
}

func TestCandidates_RankingAndBlocks(t *testing.T) {
	full := corners()
	ix := l4descriptors.NewIndex()
	ix.Insert(0, build(t, full, 0))
	ix.Insert(1, build(t, full, 1))
	ix.Insert(4, build(t, full, 4))
	ix.Insert(5, build(t, full[:5], 5))
	query := Query{FrameID: 20, Descriptors: build(t, full, 20)}

	p := testParams()
	got := NewVerifier(p, ix, planeMap{}).Candidates(query)
	require.Len(t, got, 4)
	assert.Equal(t, []int{0, 1, 4, 5}, []int{got[0].FrameID, got[1].FrameID, got[2].FrameID, got[3].FrameID})
	assert.Equal(t, got[0].Votes, got[1].Votes)
	assert.Equal(t, got[0].Votes, got[2].Votes)
	assert.Less(t, got[3].Votes, got[2].Votes)
	assert.Len(t, got[0].Pairs, got[0].Votes)

	p.CandidateNum = 2
	got = NewVerifier(p, ix, planeMap{}).Candidates(query)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].FrameID)
	assert.Equal(t, 1, got[1].FrameID)

	p = testParams()
	p.BlockSize = 2
	got = NewVerifier(p, ix, planeMap{}).Candidates(query)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].FrameID)
	assert.Equal(t, 4, got[1].FrameID)
	assert.Greater(t, got[0].Votes, got[1].Votes)
	// The representative's own pairs are kept, not the block's.
	assert.Len(t, got[0].Pairs, got[0].Votes/2)
}

func TestCandidates_RoughDistanceFilters(t *testing.T) {
	const scale = 1.015
	ix := l4descriptors.NewIndex()
	ix.Insert(0, build(t, corners(), 0))

	scaled := corners()
	for i := range scaled {
		scaled[i].Position = r3.Scale(scale, scaled[i].Position)
	}
	query := Query{FrameID: 10, Descriptors: build(t, scaled, 10)}

	// A triangle's scaled copy differs from it by exactly scale-1 in
	// relative side length. Other stored triangles may still come close, so
	// only counterpart pairs are checked.
	counterparts := func(cands []Candidate) int {
		n := 0
		for _, c := range cands {
			for _, pr := range c.Pairs {
				if isScaledCopy(pr, scale) {
					n++
				}
			}
		}
		return n
	}
	assert.Zero(t, counterparts(NewVerifier(testParams(), ix, planeMap{}).Candidates(query)))

	p := testParams()
	p.RoughDistance = 0.05
	assert.Positive(t, counterparts(NewVerifier(p, ix, planeMap{}).Candidates(query)))
}

// isScaledCopy reports whether pr.Query's vertex set is pr.Match's scaled
// about the origin.
func isScaledCopy(pr Pair, scale float64) bool {
	for _, q := range pr.Query.Vertices {
		found := false
		for _, m := range pr.Match.Vertices {
			if r3.Norm(r3.Sub(q, r3.Scale(scale, m))) < 1e-9 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestCandidates_EmptyQuery(t *testing.T) {
	ix := l4descriptors.NewIndex()
	ix.Insert(0, build(t, corners(), 0))
	assert.Nil(t, NewVerifier(testParams(), ix, planeMap{}).Candidates(Query{FrameID: 30}))
}
