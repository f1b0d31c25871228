package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/stdesc/internal/evaluation"
)

const (
	resultsSubdir   = "stdesc_results"
	latestLink      = "latest"
	timestampLayout = "20060102_150405"

	closuresFile = "predicted_closures.csv"
	metricsFile  = "metrics.txt"
	prCurveFile  = "pr_curve.png"
	paramsFile   = "params.yaml"
)

// writeOutputs writes the result files of sum under
// root/stdesc_results/<sequence>/<timestamp> and repoints the sequence's
// latest link at it. Metrics files are written only when sum has metrics.
func writeOutputs(root string, now time.Time, sum Summary, params map[string]float64) (string, error) {
	seqDir := filepath.Join(filepath.Clean(root), resultsSubdir, sequenceDirName(sum.Sequence))
	stamp := now.Format(timestampLayout)
	dir := filepath.Join(seqDir, stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	if err := writeFile(filepath.Join(dir, closuresFile), sum.Results.WriteClosuresCSV); err != nil {
		return "", err
	}

	if len(params) > 0 {
		b, err := yaml.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("marshal params: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, paramsFile), b, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", paramsFile, err)
		}
	}

	if len(sum.Metrics) > 0 {
		err := writeFile(filepath.Join(dir, metricsFile), func(w io.Writer) error {
			return sum.Results.WriteTable(w, sum.Metrics)
		})
		if err != nil {
			return "", err
		}
		title := fmt.Sprintf("%s precision/recall", sum.Results.Dataset)
		if err := evaluation.SavePRCurve(filepath.Join(dir, prCurveFile), title, sum.Metrics); err != nil {
			return "", fmt.Errorf("write %s: %w", prCurveFile, err)
		}
	}

	if err := updateLatest(seqDir, stamp); err != nil {
		return "", err
	}
	return dir, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", filepath.Base(path), cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// updateLatest atomically points seqDir/latest at the sibling target.
func updateLatest(seqDir, target string) error {
	tmp := filepath.Join(seqDir, "."+latestLink+".tmp")
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("failed to create latest link: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(seqDir, latestLink)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to update latest link: %w", err)
	}
	return nil
}

// sequenceDirName turns a sequence name into a single safe path element.
// Runs of characters outside [A-Za-z0-9.-] become one underscore.
func sequenceDirName(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}
