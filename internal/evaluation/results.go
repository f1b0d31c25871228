// Package evaluation scores predicted loop closures against ground truth.
package evaluation

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/banshee-data/stdesc/internal/dataset"
)

// DefaultThresholds are the score thresholds 0.1, 0.2, ..., 0.9.
func DefaultThresholds() []float64 {
	out := make([]float64, 9)
	for i := range out {
		out[i] = float64(i+1) / 10
	}
	return out
}

// Closure is one predicted loop closure.
type Closure struct {
	Query int
	Match int
	Score float64
}

// Metrics are the confusion counts and derived rates at one threshold.
type Metrics struct {
	Threshold      float64
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	Precision      float64
	Recall         float64
	F1             float64
}

// NewMetrics derives precision, recall and F1 from counts. Undefined ratios
// are 0.
func NewMetrics(threshold float64, tp, fp, fn int) Metrics {
	m := Metrics{Threshold: threshold, TruePositives: tp, FalsePositives: fp, FalseNegatives: fn}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// Results accumulates the closures of one sequence.
type Results struct {
	Dataset    string
	Thresholds []float64
	closures   []Closure
}

// NewResults returns an empty accumulator. nil thresholds select
// DefaultThresholds.
func NewResults(datasetName string, thresholds []float64) *Results {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Results{Dataset: datasetName, Thresholds: thresholds}
}

// Append records a predicted closure.
func (r *Results) Append(query, match int, score float64) {
	r.closures = append(r.closures, Closure{Query: query, Match: match, Score: score})
}

// Closures returns the recorded closures in append order.
func (r *Results) Closures() []Closure { return r.closures }

// predicted returns the unordered pairs whose score exceeds threshold.
func (r *Results) predicted(threshold float64) map[dataset.Pair]struct{} {
	out := make(map[dataset.Pair]struct{})
	for _, c := range r.closures {
		if c.Score > threshold {
			out[dataset.NewPair(c.Query, c.Match)] = struct{}{}
		}
	}
	return out
}

// Compute evaluates every threshold against gt.
func (r *Results) Compute(gt dataset.GroundTruth) []Metrics {
	out := make([]Metrics, 0, len(r.Thresholds))
	for _, thr := range r.Thresholds {
		pred := r.predicted(thr)
		tp := 0
		for p := range pred {
			if _, ok := gt[p]; ok {
				tp++
			}
		}
		out = append(out, NewMetrics(thr, tp, len(pred)-tp, len(gt)-tp))
	}
	return out
}

// WriteTable renders metrics as an aligned text table titled with the
// dataset name.
func (r *Results) WriteTable(w io.Writer, metrics []Metrics) error {
	if _, err := fmt.Fprintf(w, "%s\n\n", r.Dataset); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Score Threshold\tTrue Positives\tFalse Positives\tFalse Negatives\tPrecision\tRecall\tF1 score\t")
	for _, m := range metrics {
		fmt.Fprintf(tw, "%.1f\t%d\t%d\t%d\t%.4f\t%.4f\t%.4f\t\n",
			m.Threshold, m.TruePositives, m.FalsePositives, m.FalseNegatives, m.Precision, m.Recall, m.F1)
	}
	return tw.Flush()
}

// WriteClosuresCSV writes the recorded closures ordered by query frame.
func (r *Results) WriteClosuresCSV(w io.Writer) error {
	sorted := append([]Closure(nil), r.closures...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Query < sorted[j].Query })

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"query", "match", "score"}); err != nil {
		return err
	}
	for _, c := range sorted {
		rec := []string{
			strconv.Itoa(c.Query),
			strconv.Itoa(c.Match),
			strconv.FormatFloat(c.Score, 'f', 6, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
