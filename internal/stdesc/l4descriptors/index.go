package l4descriptors

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// Entry is one stored descriptor together with the frame that produced it.
type Entry struct {
	FrameID    int
	Descriptor TriangleDescriptor
}

// Index is an append-only store of descriptors keyed by SideCode.
//
// Alongside the entries, each code keeps a roaring bitmap of the frames that
// contributed to it, so callers can cheaply skip codes that only occur in
// frames they are not allowed to match.
//
// Index is not safe for concurrent mutation. Concurrent Lookup calls are safe
// while no Insert is running.
type Index struct {
	entries map[SideCode][]Entry
	frames  map[SideCode]*roaring.Bitmap
	size    int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		entries: make(map[SideCode][]Entry),
		frames:  make(map[SideCode]*roaring.Bitmap),
	}
}

// Insert appends every descriptor under its code, tagged with frameID.
// Frame sets are 32-bit bitmaps, so frameID must lie in [0, MaxUint32];
// Insert panics otherwise.
func (ix *Index) Insert(frameID int, descs []TriangleDescriptor) {
	if frameID < 0 || uint64(frameID) > math.MaxUint32 {
		panic(fmt.Sprintf("l4descriptors: frame id %d outside the 32-bit index range", frameID))
	}
	for _, d := range descs {
		d.FrameID = frameID
		ix.entries[d.Code] = append(ix.entries[d.Code], Entry{FrameID: frameID, Descriptor: d})
		bm, ok := ix.frames[d.Code]
		if !ok {
			bm = roaring.New()
			ix.frames[d.Code] = bm
		}
		bm.Add(uint32(frameID))
		ix.size++
	}
}

// Lookup returns every entry stored under code, in insertion order, or nil.
// The returned slice must not be modified.
func (ix *Index) Lookup(code SideCode) []Entry {
	e := ix.entries[code]
	return e[:len(e):len(e)]
}

// EarliestFrame returns the smallest frame identifier stored under code.
func (ix *Index) EarliestFrame(code SideCode) (int, bool) {
	bm, ok := ix.frames[code]
	if !ok || bm.IsEmpty() {
		return 0, false
	}
	return int(bm.Minimum()), true
}

// Frames returns the distinct frame identifiers stored under code, ascending.
func (ix *Index) Frames(code SideCode) []int {
	bm, ok := ix.frames[code]
	if !ok {
		return nil
	}
	ids := bm.ToArray()
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// Len returns the total number of stored entries.
func (ix *Index) Len() int { return ix.size }

// Codes returns the number of distinct codes.
func (ix *Index) Codes() int { return len(ix.entries) }
