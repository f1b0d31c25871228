package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/stdesc/internal/dataset"
	"github.com/banshee-data/stdesc/internal/evaluation"
	"github.com/banshee-data/stdesc/internal/monitoring"
	"github.com/banshee-data/stdesc/internal/stdesc"
	"github.com/banshee-data/stdesc/internal/storage/sqlite"
	"github.com/banshee-data/stdesc/internal/timeutil"
)

// RunRecorder persists a run and its per-frame decisions.
// *sqlite.ClosureStore satisfies it.
type RunRecorder interface {
	CreateRun(sequence string, params map[string]float64) (*sqlite.Run, error)
	RecordResult(runID string, r stdesc.LoopClosureResult) error
	FinishRun(runID string) error
}

// Options configures a replay. The zero value processes the source and
// keeps results in memory only.
type Options struct {
	// Sequence names the run in logs, the store and the results path.
	Sequence string
	// GroundTruth enables evaluation when non-nil.
	GroundTruth dataset.GroundTruth
	// Thresholds override evaluation.DefaultThresholds.
	Thresholds []float64
	// ResultsDir is the root under which stdesc_results/<sequence>/<timestamp>
	// is written. Empty disables file output.
	ResultsDir string
	// Recorder receives every frame decision when set.
	Recorder RunRecorder
	// Params are stored with the run and written next to the results.
	Params map[string]float64
	// ProgressEvery logs a progress line every n scans; 0 disables it.
	ProgressEvery int
	// Clock stamps the results directory and measures elapsed time.
	Clock timeutil.Clock
}

// Summary describes a finished (or interrupted) replay.
type Summary struct {
	Sequence string
	RunID    string
	Frames   int
	Closures int
	Elapsed  time.Duration
	// Metrics are empty without ground truth.
	Metrics   []evaluation.Metrics
	OutputDir string
	Results   *evaluation.Results
}

// Run feeds every scan of src to mgr in order. It stops between scans when
// ctx is cancelled and returns the partial summary with the context error;
// result files are only written for complete runs.
func Run(ctx context.Context, src dataset.Source, mgr *stdesc.Manager, opts Options) (Summary, error) {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	start := clock.Now()

	sum := Summary{
		Sequence: opts.Sequence,
		Results:  evaluation.NewResults(opts.Sequence, opts.Thresholds),
	}

	if opts.Recorder != nil {
		run, err := opts.Recorder.CreateRun(opts.Sequence, opts.Params)
		if err != nil {
			return sum, fmt.Errorf("failed to create run: %w", err)
		}
		sum.RunID = run.RunID
	}

	total := src.Len()
	monitoring.Logf("[pipeline] sequence %q: %s scans", opts.Sequence, humanize.Comma(int64(total)))

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			sum.Elapsed = clock.Since(start)
			monitoring.Logf("[pipeline] interrupted after %d of %d scans", sum.Frames, total)
			return sum, err
		}

		points, err := src.Scan(i)
		if err != nil {
			sum.Elapsed = clock.Since(start)
			return sum, fmt.Errorf("scan %d: %w", i, err)
		}

		res := mgr.ProcessNewScan(points)
		sum.Frames++
		if res.Matched() {
			sum.Closures++
			sum.Results.Append(res.FrameID, res.MatchFrameID, res.Score)
		}
		if opts.Recorder != nil {
			if err := opts.Recorder.RecordResult(sum.RunID, res); err != nil {
				sum.Elapsed = clock.Since(start)
				return sum, fmt.Errorf("record frame %d: %w", res.FrameID, err)
			}
		}

		if opts.ProgressEvery > 0 && (i+1)%opts.ProgressEvery == 0 {
			monitoring.Logf("[pipeline] %s/%s scans, %s closures",
				humanize.Comma(int64(i+1)), humanize.Comma(int64(total)), humanize.Comma(int64(sum.Closures)))
		}
	}

	if opts.Recorder != nil {
		if err := opts.Recorder.FinishRun(sum.RunID); err != nil {
			return sum, fmt.Errorf("failed to finish run: %w", err)
		}
	}

	if opts.GroundTruth != nil {
		sum.Metrics = sum.Results.Compute(opts.GroundTruth)
	}

	if opts.ResultsDir != "" {
		dir, err := writeOutputs(opts.ResultsDir, clock.Now(), sum, opts.Params)
		if err != nil {
			sum.Elapsed = clock.Since(start)
			return sum, err
		}
		sum.OutputDir = dir
	}

	sum.Elapsed = clock.Since(start)
	monitoring.Logf("[pipeline] sequence %q done: %d frames, %d closures in %s",
		opts.Sequence, sum.Frames, sum.Closures, sum.Elapsed.Round(time.Millisecond))
	return sum, nil
}
