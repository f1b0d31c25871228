package l5matching

import (
	"math"
	"sort"

	"github.com/banshee-data/stdesc/internal/stdesc/l4descriptors"
)

// codeSearchRadius is the distance, in code cells, from a descriptor's
// real-valued code position within which neighbouring cells are searched.
const codeSearchRadius = 1.5

// Pair is a query descriptor and a stored descriptor that passed coarse
// matching.
type Pair struct {
	Query l4descriptors.TriangleDescriptor
	Match l4descriptors.TriangleDescriptor
}

// Candidate is a frame ranked for geometric verification.
type Candidate struct {
	FrameID int
	// Votes counts coarse matches for the candidate's block (or frame when
	// blocks are disabled).
	Votes int
	// Pairs are the coarse matches against FrameID itself.
	Pairs []Pair
}

// eligibleLimit returns the largest frame identifier frame may be matched
// against: f - c must exceed skip.
func eligibleLimit(frame, skip int) int {
	return frame - skip - 1
}

// neighbourCodes lists the codes around d's real-valued code position whose
// cell centres lie within codeSearchRadius cells, in a fixed order.
func neighbourCodes(d l4descriptors.TriangleDescriptor, resolution float64) []l4descriptors.SideCode {
	pos := [3]float64{d.Sides[0] / resolution, d.Sides[1] / resolution, d.Sides[2] / resolution}
	base := d.Code
	codes := make([]l4descriptors.SideCode, 0, 27)
	for da := int64(-1); da <= 1; da++ {
		for db := int64(-1); db <= 1; db++ {
			for dc := int64(-1); dc <= 1; dc++ {
				c := l4descriptors.SideCode{A: base.A + da, B: base.B + db, C: base.C + dc}
				ea := float64(c.A) - pos[0]
				eb := float64(c.B) - pos[1]
				ec := float64(c.C) - pos[2]
				if math.Sqrt(ea*ea+eb*eb+ec*ec) < codeSearchRadius {
					codes = append(codes, c)
				}
			}
		}
	}
	return codes
}

// Candidates gathers and ranks the frames that may close a loop with q.
// Only frames at least SkipNearNum+1 identifiers older than q are
// considered. Candidates are ordered by votes (descending) and then by frame
// identifier (ascending), and at most CandidateNum are returned.
func (v *Verifier) Candidates(q Query) []Candidate {
	limit := eligibleLimit(q.FrameID, v.p.SkipNearNum)
	if limit < 0 || len(q.Descriptors) == 0 || v.p.CandidateNum <= 0 {
		return nil
	}

	votes := make(map[int]int)
	pairs := make(map[int][]Pair)
	for _, d := range q.Descriptors {
		for _, code := range neighbourCodes(d, v.p.SideResolution) {
			if earliest, ok := v.index.EarliestFrame(code); !ok || earliest > limit {
				continue
			}
			for _, e := range v.index.Lookup(code) {
				if e.FrameID > limit {
					continue
				}
				if l4descriptors.SideDistance(d, e.Descriptor) >= v.p.RoughDistance {
					continue
				}
				if l4descriptors.AttachedDistance(d, e.Descriptor) >= v.p.VertexDifference {
					continue
				}
				votes[e.FrameID]++
				pairs[e.FrameID] = append(pairs[e.FrameID], Pair{Query: d, Match: e.Descriptor})
			}
		}
	}
	if len(votes) == 0 {
		return nil
	}

	// Each block is represented by its most-voted frame (smallest identifier
	// on ties) and ranked by the block's total votes.
	block := max(v.p.BlockSize, 1)
	type tally struct{ rep, repVotes, total int }
	blocks := make(map[int]*tally)
	for id, n := range votes {
		b := blocks[id/block]
		if b == nil {
			b = &tally{rep: id, repVotes: n}
			blocks[id/block] = b
		} else if n > b.repVotes || (n == b.repVotes && id < b.rep) {
			b.rep, b.repVotes = id, n
		}
		b.total += n
	}

	out := make([]Candidate, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, Candidate{FrameID: b.rep, Votes: b.total, Pairs: pairs[b.rep]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].FrameID < out[j].FrameID
	})
	if len(out) > v.p.CandidateNum {
		out = out[:v.p.CandidateNum]
	}
	return out
}
