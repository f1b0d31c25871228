package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stdesc"

// Stage labels for Metrics.ObserveStage.
const (
	StageDownsample  = "downsample"
	StagePlanes      = "planes"
	StageKeypoints   = "keypoints"
	StageDescriptors = "descriptors"
	StageVerify      = "verify"
)

// Metrics holds the Prometheus collectors of one manager. All methods are
// no-ops on a nil *Metrics.
type Metrics struct {
	ScansProcessed     prometheus.Counter
	LoopClosures       prometheus.Counter
	DescriptorsPerScan prometheus.Histogram
	IndexEntries       prometheus.Gauge
	StageSeconds       *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ScansProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_processed_total",
			Help:      "Total number of scans processed",
		}),
		LoopClosures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_closures_total",
			Help:      "Total number of verified loop closures",
		}),
		DescriptorsPerScan: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "descriptors_per_scan",
			Help:      "Triangle descriptors extracted per scan",
			Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 2500},
		}),
		IndexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Descriptors stored in the index",
		}),
		StageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Per-scan processing time by pipeline stage",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"stage"}),
	}
	for _, c := range []prometheus.Collector{
		m.ScansProcessed, m.LoopClosures, m.DescriptorsPerScan, m.IndexEntries, m.StageSeconds,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveScan records one processed scan.
func (m *Metrics) ObserveScan(descriptors, indexEntries int, closed bool) {
	if m == nil {
		return
	}
	m.ScansProcessed.Inc()
	m.DescriptorsPerScan.Observe(float64(descriptors))
	m.IndexEntries.Set(float64(indexEntries))
	if closed {
		m.LoopClosures.Inc()
	}
}

// ObserveStage records the time spent in one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}
