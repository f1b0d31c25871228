package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/stdesc/internal/stdesc"
	"github.com/banshee-data/stdesc/internal/stdesc/l2planes"
	"github.com/banshee-data/stdesc/internal/stdesc/l3keypoints"
	"github.com/banshee-data/stdesc/internal/stdesc/l4descriptors"
	"github.com/banshee-data/stdesc/internal/stdesc/l5matching"
)

// DefaultConfigPath is the canonical location of the reference parameter
// file, relative to the repository root.
const DefaultConfigPath = "config/stdesc.defaults.yaml"

// maxConfigSize caps configuration files at 1 MiB.
const maxConfigSize = 1 << 20

var (
	// ErrMissingParameter is returned by Build when a recognised option is
	// unset.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrInvalidParameter is returned for unknown options and out-of-range
	// values.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// STDescConfig is the named-parameter form of the manager configuration.
// Every field is a pointer; nil means the option was not supplied.
type STDescConfig struct {
	DSSize                  *float64 `json:"ds_size,omitempty" yaml:"ds_size,omitempty"`
	MaximumCornerNum        *int     `json:"maximum_corner_num,omitempty" yaml:"maximum_corner_num,omitempty"`
	PlaneMergeNormalThre    *float64 `json:"plane_merge_normal_thre,omitempty" yaml:"plane_merge_normal_thre,omitempty"`
	PlaneDetectionThre      *float64 `json:"plane_detection_thre,omitempty" yaml:"plane_detection_thre,omitempty"`
	VoxelSize               *float64 `json:"voxel_size,omitempty" yaml:"voxel_size,omitempty"`
	VoxelInitNum            *int     `json:"voxel_init_num,omitempty" yaml:"voxel_init_num,omitempty"`
	ProjImageResolution     *float64 `json:"proj_image_resolution,omitempty" yaml:"proj_image_resolution,omitempty"`
	ProjDisMin              *float64 `json:"proj_dis_min,omitempty" yaml:"proj_dis_min,omitempty"`
	ProjDisMax              *float64 `json:"proj_dis_max,omitempty" yaml:"proj_dis_max,omitempty"`
	CornerThre              *float64 `json:"corner_thre,omitempty" yaml:"corner_thre,omitempty"`
	DescriptorNearNum       *int     `json:"descriptor_near_num,omitempty" yaml:"descriptor_near_num,omitempty"`
	DescriptorMinLen        *float64 `json:"descriptor_min_len,omitempty" yaml:"descriptor_min_len,omitempty"`
	DescriptorMaxLen        *float64 `json:"descriptor_max_len,omitempty" yaml:"descriptor_max_len,omitempty"`
	NonMaxSuppressionRadius *float64 `json:"non_max_suppression_radius,omitempty" yaml:"non_max_suppression_radius,omitempty"`
	STDSideResolution       *float64 `json:"std_side_resolution,omitempty" yaml:"std_side_resolution,omitempty"`
	SkipNearNum             *int     `json:"skip_near_num,omitempty" yaml:"skip_near_num,omitempty"`
	CandidateNum            *int     `json:"candidate_num,omitempty" yaml:"candidate_num,omitempty"`
	SubFrameNum             *int     `json:"sub_frame_num,omitempty" yaml:"sub_frame_num,omitempty"`
	RoughDisThreshold       *float64 `json:"rough_dis_threshold,omitempty" yaml:"rough_dis_threshold,omitempty"`
	VertexDiffThreshold     *float64 `json:"vertex_diff_threshold,omitempty" yaml:"vertex_diff_threshold,omitempty"`
	ICPThreshold            *float64 `json:"icp_threshold,omitempty" yaml:"icp_threshold,omitempty"`
	NormalThreshold         *float64 `json:"normal_threshold,omitempty" yaml:"normal_threshold,omitempty"`
	DisThreshold            *float64 `json:"dis_threshold,omitempty" yaml:"dis_threshold,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// param binds an option name to its field.
type param struct {
	name string
	f    **float64 // set for real-valued options
	i    **int     // set for count options
}

func (c *STDescConfig) params() []param {
	return []param{
		{name: "ds_size", f: &c.DSSize},
		{name: "maximum_corner_num", i: &c.MaximumCornerNum},
		{name: "plane_merge_normal_thre", f: &c.PlaneMergeNormalThre},
		{name: "plane_detection_thre", f: &c.PlaneDetectionThre},
		{name: "voxel_size", f: &c.VoxelSize},
		{name: "voxel_init_num", i: &c.VoxelInitNum},
		{name: "proj_image_resolution", f: &c.ProjImageResolution},
		{name: "proj_dis_min", f: &c.ProjDisMin},
		{name: "proj_dis_max", f: &c.ProjDisMax},
		{name: "corner_thre", f: &c.CornerThre},
		{name: "descriptor_near_num", i: &c.DescriptorNearNum},
		{name: "descriptor_min_len", f: &c.DescriptorMinLen},
		{name: "descriptor_max_len", f: &c.DescriptorMaxLen},
		{name: "non_max_suppression_radius", f: &c.NonMaxSuppressionRadius},
		{name: "std_side_resolution", f: &c.STDSideResolution},
		{name: "skip_near_num", i: &c.SkipNearNum},
		{name: "candidate_num", i: &c.CandidateNum},
		{name: "sub_frame_num", i: &c.SubFrameNum},
		{name: "rough_dis_threshold", f: &c.RoughDisThreshold},
		{name: "vertex_diff_threshold", f: &c.VertexDiffThreshold},
		{name: "icp_threshold", f: &c.ICPThreshold},
		{name: "normal_threshold", f: &c.NormalThreshold},
		{name: "dis_threshold", f: &c.DisThreshold},
	}
}

// ParameterNames returns every recognised option name in canonical order.
func ParameterNames() []string {
	ps := (&STDescConfig{}).params()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.name
	}
	return names
}

// Defaults returns the reference parameter set.
func Defaults() *STDescConfig {
	return &STDescConfig{
		DSSize:                  ptrFloat64(0.25),
		MaximumCornerNum:        ptrInt(100),
		PlaneMergeNormalThre:    ptrFloat64(0.2),
		PlaneDetectionThre:      ptrFloat64(0.01),
		VoxelSize:               ptrFloat64(2.0),
		VoxelInitNum:            ptrInt(10),
		ProjImageResolution:     ptrFloat64(0.5),
		ProjDisMin:              ptrFloat64(0),
		ProjDisMax:              ptrFloat64(5),
		CornerThre:              ptrFloat64(10),
		DescriptorNearNum:       ptrInt(10),
		DescriptorMinLen:        ptrFloat64(2),
		DescriptorMaxLen:        ptrFloat64(50),
		NonMaxSuppressionRadius: ptrFloat64(2),
		STDSideResolution:       ptrFloat64(0.2),
		SkipNearNum:             ptrInt(50),
		CandidateNum:            ptrInt(50),
		SubFrameNum:             ptrInt(10),
		RoughDisThreshold:       ptrFloat64(0.01),
		VertexDiffThreshold:     ptrFloat64(0.5),
		ICPThreshold:            ptrFloat64(0.4),
		NormalThreshold:         ptrFloat64(0.2),
		DisThreshold:            ptrFloat64(0.5),
	}
}

// FromMap builds a configuration from option name to value. Unknown names
// and non-integral values for count options are rejected. Options absent
// from values stay unset.
func FromMap(values map[string]float64) (*STDescConfig, error) {
	cfg := &STDescConfig{}
	byName := make(map[string]param)
	for _, p := range cfg.params() {
		byName[p.name] = p
	}
	for name, v := range values {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown option %q", ErrInvalidParameter, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidParameter, name, v)
		}
		if p.i != nil {
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidParameter, name, v)
			}
			*p.i = ptrInt(int(v))
			continue
		}
		*p.f = ptrFloat64(v)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToMap returns the set options keyed by name.
func (c *STDescConfig) ToMap() map[string]float64 {
	out := make(map[string]float64)
	for _, p := range c.params() {
		switch {
		case p.f != nil && *p.f != nil:
			out[p.name] = **p.f
		case p.i != nil && *p.i != nil:
			out[p.name] = float64(**p.i)
		}
	}
	return out
}

// Missing returns the names of unset options in canonical order.
func (c *STDescConfig) Missing() []string {
	var missing []string
	for _, p := range c.params() {
		if (p.f != nil && *p.f == nil) || (p.i != nil && *p.i == nil) {
			missing = append(missing, p.name)
		}
	}
	return missing
}

// LoadConfig reads a .json, .yaml or .yml parameter file. Unknown keys are
// rejected; absent keys stay unset.
func LoadConfig(path string) (*STDescConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &STDescConfig{}
	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or one of its ancestors, so tests in nested packages can find it.
func MustLoadDefaultConfig() *STDescConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/stdesc/l5matching/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the options that are set.
func (c *STDescConfig) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"ds_size", c.DSSize},
		{"voxel_size", c.VoxelSize},
		{"plane_detection_thre", c.PlaneDetectionThre},
		{"proj_image_resolution", c.ProjImageResolution},
		{"std_side_resolution", c.STDSideResolution},
		{"rough_dis_threshold", c.RoughDisThreshold},
		{"vertex_diff_threshold", c.VertexDiffThreshold},
		{"icp_threshold", c.ICPThreshold},
		{"normal_threshold", c.NormalThreshold},
		{"dis_threshold", c.DisThreshold},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidParameter, p.name, *p.v)
		}
	}

	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"plane_merge_normal_thre", c.PlaneMergeNormalThre},
		{"proj_dis_min", c.ProjDisMin},
		{"proj_dis_max", c.ProjDisMax},
		{"corner_thre", c.CornerThre},
		{"descriptor_min_len", c.DescriptorMinLen},
		{"descriptor_max_len", c.DescriptorMaxLen},
		{"non_max_suppression_radius", c.NonMaxSuppressionRadius},
	}
	for _, p := range nonNegative {
		if p.v != nil && *p.v < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %g", ErrInvalidParameter, p.name, *p.v)
		}
	}

	counts := []struct {
		name string
		v    *int
		min  int
	}{
		{"maximum_corner_num", c.MaximumCornerNum, 1},
		{"voxel_init_num", c.VoxelInitNum, 3},
		{"descriptor_near_num", c.DescriptorNearNum, 2},
		{"skip_near_num", c.SkipNearNum, 0},
		{"candidate_num", c.CandidateNum, 1},
		{"sub_frame_num", c.SubFrameNum, 1},
	}
	for _, p := range counts {
		if p.v != nil && *p.v < p.min {
			return fmt.Errorf("%w: %s must be at least %d, got %d", ErrInvalidParameter, p.name, p.min, *p.v)
		}
	}

	if c.ProjDisMin != nil && c.ProjDisMax != nil && *c.ProjDisMin > *c.ProjDisMax {
		return fmt.Errorf("%w: proj_dis_min %g exceeds proj_dis_max %g", ErrInvalidParameter, *c.ProjDisMin, *c.ProjDisMax)
	}
	if c.DescriptorMinLen != nil && c.DescriptorMaxLen != nil && *c.DescriptorMinLen > *c.DescriptorMaxLen {
		return fmt.Errorf("%w: descriptor_min_len %g exceeds descriptor_max_len %g", ErrInvalidParameter, *c.DescriptorMinLen, *c.DescriptorMaxLen)
	}
	return nil
}

// Build converts a complete configuration into the manager's Config.
// Every unset option is named in the returned error.
func (c *STDescConfig) Build() (stdesc.Config, error) {
	if missing := c.Missing(); len(missing) > 0 {
		return stdesc.Config{}, fmt.Errorf("%w: %s", ErrMissingParameter, strings.Join(missing, ", "))
	}
	if err := c.Validate(); err != nil {
		return stdesc.Config{}, err
	}

	cfg := stdesc.Config{
		DownsampleSize: *c.DSSize,
		Planes: l2planes.Params{
			VoxelSize:            *c.VoxelSize,
			MinVoxelPoints:       *c.VoxelInitNum,
			PlanarityThreshold:   *c.PlaneDetectionThre,
			MergeNormalThreshold: *c.PlaneMergeNormalThre,
		},
		Keypoints: l3keypoints.Params{
			Resolution:        *c.ProjImageResolution,
			MinDistance:       *c.ProjDisMin,
			MaxDistance:       *c.ProjDisMax,
			ResponseThreshold: *c.CornerThre,
			SuppressionRadius: *c.NonMaxSuppressionRadius,
			MaxKeypoints:      *c.MaximumCornerNum,
		},
		Descriptors: l4descriptors.Params{
			NeighborCount:  *c.DescriptorNearNum,
			MinSide:        *c.DescriptorMinLen,
			MaxSide:        *c.DescriptorMaxLen,
			SideResolution: *c.STDSideResolution,
		},
		Matching: l5matching.Params{
			SkipNearNum:       *c.SkipNearNum,
			CandidateNum:      *c.CandidateNum,
			BlockSize:         *c.SubFrameNum,
			RoughDistance:     *c.RoughDisThreshold,
			VertexDifference:  *c.VertexDiffThreshold,
			ICPThreshold:      *c.ICPThreshold,
			NormalThreshold:   *c.NormalThreshold,
			DistanceThreshold: *c.DisThreshold,
		},
	}
	if err := cfg.Validate(); err != nil {
		return stdesc.Config{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return cfg, nil
}

// Marshal renders the set options as YAML in field order.
func (c *STDescConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
