package stdesc

import (
	"fmt"
	"time"

	"github.com/banshee-data/stdesc/internal/monitoring"
	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
	"github.com/banshee-data/stdesc/internal/stdesc/l2planes"
	"github.com/banshee-data/stdesc/internal/stdesc/l3keypoints"
	"github.com/banshee-data/stdesc/internal/stdesc/l4descriptors"
	"github.com/banshee-data/stdesc/internal/stdesc/l5matching"
)

// Manager owns the frame history and descriptor index of one scan sequence.
//
// Manager is not safe for concurrent use. ProcessNewScan must be called by a
// single goroutine, once per scan, in arrival order.
type Manager struct {
	cfg      Config
	index    *l4descriptors.Index
	frames   []Frame
	history  []LoopClosureResult
	verifier *l5matching.Verifier
	metrics  *monitoring.Metrics
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithMetrics records per-scan metrics on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// NewManager validates cfg and returns an empty manager.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:   cfg.withDerived(),
		index: l4descriptors.NewIndex(),
	}
	m.verifier = l5matching.NewVerifier(m.cfg.Matching, m.index, planeSource{m})
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// planeSource serves retained frame planes to the verifier.
type planeSource struct{ m *Manager }

func (s planeSource) FramePlanes(id int) []l2planes.Plane {
	if id < 0 || id >= len(s.m.frames) {
		return nil
	}
	return s.m.frames[id].Planes
}

// Config returns the manager's configuration, including derived values.
func (m *Manager) Config() Config { return m.cfg }

// ProcessNewScan assigns the next frame identifier to points, decides
// whether the scan closes a loop with an earlier frame and records the
// outcome. Empty or degenerate scans are not errors; they produce no
// descriptors and no match.
func (m *Manager) ProcessNewScan(points []l1cloud.Point) LoopClosureResult {
	id := len(m.frames)

	start := time.Now()
	down := l1cloud.VoxelDownsample(points, m.cfg.DownsampleSize)
	start = m.stage(monitoring.StageDownsample, start)

	planes := l2planes.Extract(down, m.cfg.Planes)
	start = m.stage(monitoring.StagePlanes, start)

	keypoints := l3keypoints.Extract(down, planes.Regions, m.cfg.Keypoints)
	start = m.stage(monitoring.StageKeypoints, start)

	descs := l4descriptors.Build(keypoints, id, m.cfg.Descriptors)
	start = m.stage(monitoring.StageDescriptors, start)

	out := m.verifier.Verify(l5matching.Query{FrameID: id, Descriptors: descs, Planes: planes.Voxels})
	m.stage(monitoring.StageVerify, start)

	res := LoopClosureResult{FrameID: id, MatchFrameID: NoMatch, Transform: l1cloud.Identity()}
	if out.Found {
		res.MatchFrameID = out.Match.FrameID
		res.MatchCount = out.Match.MatchCount
		res.Score = out.Match.Score
		res.Votes = out.Match.Votes
		res.Transform = out.Match.Transform
	}

	// The query above saw only earlier frames; this frame becomes
	// searchable from here on.
	m.index.Insert(id, descs)
	m.frames = append(m.frames, Frame{
		ID:          id,
		PointCount:  len(down),
		Planes:      planes.Voxels,
		Regions:     len(planes.Regions),
		Keypoints:   keypoints,
		Descriptors: descs,
	})
	m.history = append(m.history, res)

	m.metrics.ObserveScan(len(descs), m.index.Len(), res.Matched())
	if res.Matched() {
		monitoring.Logf("[stdesc] frame %d closes loop with frame %d: score=%.3f planes=%d votes=%d",
			id, res.MatchFrameID, res.Score, res.MatchCount, res.Votes)
	}
	if m.cfg.LogEvery > 0 && id%m.cfg.LogEvery == 0 {
		monitoring.Logf("[stdesc] frame %d: points=%d planes=%d regions=%d keypoints=%d descriptors=%d candidates=%d degenerate=%d index=%d",
			id, len(down), len(planes.Voxels), len(planes.Regions), len(keypoints), len(descs),
			out.Candidates, out.Degenerate, m.index.Len())
	}
	return res
}

func (m *Manager) stage(name string, start time.Time) time.Time {
	now := time.Now()
	m.metrics.ObserveStage(name, now.Sub(start))
	return now
}

// GetClosureDataAtIdx returns the decision recorded for frame idx.
func (m *Manager) GetClosureDataAtIdx(idx int) (LoopClosureResult, error) {
	if idx < 0 || idx >= len(m.history) {
		return LoopClosureResult{}, fmt.Errorf("%w: %d not in [0, %d)", ErrFrameOutOfRange, idx, len(m.history))
	}
	return m.history[idx], nil
}

// FrameCount returns the number of processed scans.
func (m *Manager) FrameCount() int { return len(m.frames) }

// Frame returns what was retained of frame idx. The returned slices must not
// be modified.
func (m *Manager) Frame(idx int) (Frame, error) {
	if idx < 0 || idx >= len(m.frames) {
		return Frame{}, fmt.Errorf("%w: %d not in [0, %d)", ErrFrameOutOfRange, idx, len(m.frames))
	}
	return m.frames[idx], nil
}

// Index exposes the descriptor index for read-only inspection.
func (m *Manager) Index() *l4descriptors.Index { return m.index }

// VoxelDownsample is the standalone downsampling utility: one centroid per
// occupied voxel of edge leafSize, independent of any manager.
func VoxelDownsample(points []l1cloud.Point, leafSize float64) []l1cloud.Point {
	return l1cloud.VoxelDownsample(points, leafSize)
}
