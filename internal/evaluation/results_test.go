package evaluation

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stdesc/internal/dataset"
)

func groundTruth(pairs ...[2]int) dataset.GroundTruth {
	gt := make(dataset.GroundTruth)
	for _, p := range pairs {
		gt[dataset.NewPair(p[0], p[1])] = struct{}{}
	}
	return gt
}

func TestDefaultThresholds(t *testing.T) {
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}, DefaultThresholds())
}

func TestNewMetrics(t *testing.T) {
	tests := []struct {
		name       string
		tp, fp, fn int
		p, r, f1   float64
	}{
		{"perfect", 4, 0, 0, 1, 1, 1},
		{"half", 2, 2, 2, 0.5, 0.5, 0.5},
		{"nothing predicted", 0, 0, 3, 0, 0, 0},
		{"nothing true", 0, 2, 0, 0, 0, 0},
		{"skewed", 1, 0, 3, 1, 0.25, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics(0.5, tt.tp, tt.fp, tt.fn)
			assert.InDelta(t, tt.p, m.Precision, 1e-12)
			assert.InDelta(t, tt.r, m.Recall, 1e-12)
			assert.InDelta(t, tt.f1, m.F1, 1e-12)
		})
	}
}

func TestCompute(t *testing.T) {
	gt := groundTruth([2]int{3, 120}, [2]int{7, 130}, [2]int{9, 140})
	r := NewResults("seq00", []float64{0.2, 0.5, 0.8})
	r.Append(120, 3, 0.9)  // true, order reversed
	r.Append(130, 7, 0.6)  // true
	r.Append(135, 50, 0.3) // false
	r.Append(121, 3, 0.5)  // false, equals a threshold

	got := r.Compute(gt)
	require.Len(t, got, 3)

	assert.Equal(t, [3]int{2, 2, 1}, [3]int{got[0].TruePositives, got[0].FalsePositives, got[0].FalseNegatives})
	// Scores must exceed the threshold strictly.
	assert.Equal(t, [3]int{2, 0, 1}, [3]int{got[1].TruePositives, got[1].FalsePositives, got[1].FalseNegatives})
	assert.Equal(t, [3]int{1, 0, 2}, [3]int{got[2].TruePositives, got[2].FalsePositives, got[2].FalseNegatives})
	assert.InDelta(t, 1.0, got[1].Precision, 1e-12)
	assert.InDelta(t, 2.0/3, got[1].Recall, 1e-12)
}

func TestCompute_DuplicatePredictionsCountOnce(t *testing.T) {
	r := NewResults("seq", []float64{0.1})
	r.Append(50, 2, 0.9)
	r.Append(2, 50, 0.8)
	got := r.Compute(groundTruth([2]int{2, 50}))
	assert.Equal(t, 1, got[0].TruePositives)
	assert.Equal(t, 0, got[0].FalsePositives)
}

func TestWriteTable(t *testing.T) {
	r := NewResults("kitti-00", nil)
	r.Append(120, 3, 0.95)
	var buf bytes.Buffer
	require.NoError(t, r.WriteTable(&buf, r.Compute(groundTruth([2]int{3, 120}))))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, "kitti-00", lines[0])
	assert.Contains(t, lines[2], "Score Threshold")
	assert.Len(t, lines, 3+9)
	assert.Contains(t, lines[3], "1.0000")
}

func TestWriteClosuresCSV(t *testing.T) {
	r := NewResults("seq", nil)
	r.Append(130, 7, 0.5)
	r.Append(120, 3, 0.25)
	var buf bytes.Buffer
	require.NoError(t, r.WriteClosuresCSV(&buf))
	assert.Equal(t, "query,match,score\n120,3,0.250000\n130,7,0.500000\n", buf.String())
}

func TestSavePRCurve(t *testing.T) {
	r := NewResults("seq", nil)
	r.Append(120, 3, 0.95)
	r.Append(121, 60, 0.35)
	path := filepath.Join(t.TempDir(), "pr.png")
	require.NoError(t, SavePRCurve(path, "seq", r.Compute(groundTruth([2]int{3, 120}))))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, SavePRCurve(path, "empty", nil))
}
