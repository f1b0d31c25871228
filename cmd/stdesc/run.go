package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/stdesc/internal/dataset"
	"github.com/banshee-data/stdesc/internal/monitoring"
	"github.com/banshee-data/stdesc/internal/pipeline"
	"github.com/banshee-data/stdesc/internal/stdesc"
	"github.com/banshee-data/stdesc/internal/storage/sqlite"
)

func runReplay(ctx context.Context, out io.Writer, f runFlags) error {
	params, err := loadParameters(f.configPath, f.overrides)
	if err != nil {
		return err
	}
	cfg, err := params.Build()
	if err != nil {
		return err
	}
	cfg.LogEvery = f.logEvery

	src, err := dataset.OpenDir(f.datasetDir)
	if err != nil {
		return err
	}

	var gt dataset.GroundTruth
	if f.groundTruth != "" {
		if gt, err = dataset.ReadGroundTruth(f.groundTruth); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := monitoring.NewMetrics(reg)
	if err != nil {
		return err
	}
	if f.metricsAddr != "" {
		stopMetrics := serveMetrics(f.metricsAddr, reg)
		defer stopMetrics()
	}

	mgr, err := stdesc.NewManager(cfg, stdesc.WithMetrics(metrics))
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Sequence:      f.sequence,
		GroundTruth:   gt,
		ResultsDir:    f.resultsDir,
		Params:        params.ToMap(),
		ProgressEvery: f.progressEvery,
	}
	if opts.Sequence == "" {
		opts.Sequence = filepath.Base(filepath.Clean(f.datasetDir))
	}

	if f.dbPath != "" {
		db, err := sqlite.Open(f.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Recorder = sqlite.NewClosureStore(db)
	}

	sum, err := pipeline.Run(ctx, src, mgr, opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if werr := writeSummary(out, sum); werr != nil {
		return werr
	}
	return err
}

// serveMetrics exposes reg on addr until the returned stop function runs.
func serveMetrics(addr string, reg *prometheus.Registry) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("metrics server: %v", err)
		}
	}()
	monitoring.Logf("serving metrics on %s/metrics", addr)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("metrics server shutdown error: %v", err)
		}
	}
}

func writeSummary(out io.Writer, sum pipeline.Summary) error {
	fmt.Fprintf(out, "sequence %s: %s frames, %s loop closures in %s\n",
		sum.Sequence, humanize.Comma(int64(sum.Frames)), humanize.Comma(int64(sum.Closures)),
		sum.Elapsed.Round(time.Millisecond))
	if sum.RunID != "" {
		fmt.Fprintf(out, "run id: %s\n", sum.RunID)
	}
	if sum.OutputDir != "" {
		fmt.Fprintf(out, "results: %s\n", sum.OutputDir)
	}
	if len(sum.Metrics) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "threshold\tprecision\trecall\tF1")
	for _, m := range sum.Metrics {
		fmt.Fprintf(tw, "%.1f\t%.3f\t%.3f\t%.3f\n", m.Threshold, m.Precision, m.Recall, m.F1)
	}
	return tw.Flush()
}
