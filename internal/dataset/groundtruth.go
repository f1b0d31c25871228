package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Pair is an unordered pair of frame indices, stored with A < B.
type Pair struct {
	A, B int
}

// NewPair orders a and b.
func NewPair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// GroundTruth is a set of true loop-closure pairs.
type GroundTruth map[Pair]struct{}

// Contains reports whether frames a and b form a true closure, in either
// order.
func (g GroundTruth) Contains(a, b int) bool {
	_, ok := g[NewPair(a, b)]
	return ok
}

// Pairs returns the pairs in ascending order.
func (g GroundTruth) Pairs() []Pair {
	out := make([]Pair, 0, len(g))
	for p := range g {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// DecodeGroundTruth parses "i,j" records. A non-numeric first record is
// treated as a header; self-pairs and duplicates are dropped.
func DecodeGroundTruth(r io.Reader) (GroundTruth, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	gt := make(GroundTruth)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return gt, nil
		}
		if err != nil {
			return nil, fmt.Errorf("ground truth: %w", err)
		}
		a, errA := strconv.Atoi(strings.TrimSpace(rec[0]))
		b, errB := strconv.Atoi(strings.TrimSpace(rec[1]))
		if errA != nil || errB != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("ground truth record %d: non-integer frame index in %q", line, rec)
		}
		if a < 0 || b < 0 {
			return nil, fmt.Errorf("ground truth record %d: negative frame index", line)
		}
		if a != b {
			gt[NewPair(a, b)] = struct{}{}
		}
	}
}

// ReadGroundTruth reads a ground-truth CSV file.
func ReadGroundTruth(path string) (GroundTruth, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open ground truth: %w", err)
	}
	defer f.Close()
	return DecodeGroundTruth(f)
}
