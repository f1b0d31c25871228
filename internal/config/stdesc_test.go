package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stdesc/internal/stdesc"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestDefaults_AreComplete(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, cfg.Missing())
	require.NoError(t, cfg.Validate())

	built, err := cfg.Build()
	require.NoError(t, err)
	assert.Equal(t, 0.25, built.DownsampleSize)
	assert.Equal(t, 2.0, built.Planes.VoxelSize)
	assert.Equal(t, 10, built.Planes.MinVoxelPoints)
	assert.Equal(t, 100, built.Keypoints.MaxKeypoints)
	assert.Equal(t, 0.2, built.Descriptors.SideResolution)
	assert.Equal(t, 50, built.Matching.SkipNearNum)
	assert.Equal(t, 10, built.Matching.BlockSize)
	assert.Equal(t, 0.5, built.Matching.DistanceThreshold)
}

func TestMustLoadDefaultConfig_MatchesDefaults(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(Defaults(), cfg); diff != "" {
		t.Errorf("%s differs from Defaults() (-want +got):\n%s", DefaultConfigPath, diff)
	}
}

func TestParameterNames(t *testing.T) {
	names := ParameterNames()
	assert.Len(t, names, 23)
	assert.Equal(t, "ds_size", names[0])
	assert.Equal(t, "dis_threshold", names[len(names)-1])
	var set []string
	for name := range Defaults().ToMap() {
		set = append(set, name)
	}
	assert.ElementsMatch(t, names, set)
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, "std.json", `{"voxel_size": 1.5, "skip_near_num": 20}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.VoxelSize)
	assert.Equal(t, 1.5, *cfg.VoxelSize)
	assert.Equal(t, 20, *cfg.SkipNearNum)
	assert.Nil(t, cfg.DSSize)
	assert.Len(t, cfg.Missing(), 21)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "std.yml", "ds_size: 0.5\ncandidate_num: 5\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, *cfg.DSSize)
	assert.Equal(t, 5, *cfg.CandidateNum)
}

func TestLoadConfig_EmptyYAML(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Len(t, cfg.Missing(), 23)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name, file, body, want string
	}{
		{"extension", "std.toml", "ds_size = 1", "extension"},
		{"unknown json key", "std.json", `{"voxel_sz": 1}`, "parse"},
		{"unknown yaml key", "std.yaml", "voxel_sz: 1\n", "parse"},
		{"bad json", "std.json", `{"voxel_size":`, "parse"},
		{"invalid value", "std.yaml", "voxel_size: -2\n", "voxel_size"},
		{"inverted band", "std.json", `{"proj_dis_min": 3, "proj_dis_max": 1}`, "proj_dis_min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_TooLarge(t *testing.T) {
	body := "# " + strings.Repeat("x", maxConfigSize) + "\n"
	_, err := LoadConfig(writeFile(t, "big.yaml", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestFromMap(t *testing.T) {
	values := Defaults().ToMap()
	require.Len(t, values, 23)

	cfg, err := FromMap(values)
	require.NoError(t, err)
	if diff := cmp.Diff(Defaults(), cfg); diff != "" {
		t.Errorf("FromMap(Defaults().ToMap()) mismatch (-want +got):\n%s", diff)
	}

	_, err = FromMap(map[string]float64{"not_an_option": 1})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = FromMap(map[string]float64{"candidate_num": 2.5})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = FromMap(map[string]float64{"skip_near_num": -1})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestBuild_NamesEveryMissingOption(t *testing.T) {
	values := Defaults().ToMap()
	delete(values, "icp_threshold")
	delete(values, "ds_size")
	cfg, err := FromMap(values)
	require.NoError(t, err)

	_, err = cfg.Build()
	require.ErrorIs(t, err, ErrMissingParameter)
	assert.Contains(t, err.Error(), "ds_size, icp_threshold")
}

func TestBuild_FeedsManager(t *testing.T) {
	built, err := Defaults().Build()
	require.NoError(t, err)
	m, err := stdesc.NewManager(built)
	require.NoError(t, err)
	assert.Zero(t, m.FrameCount())
	_, err = m.GetClosureDataAtIdx(0)
	assert.True(t, errors.Is(err, stdesc.ErrFrameOutOfRange))
}

func TestMarshal_RoundTrip(t *testing.T) {
	data, err := Defaults().Marshal()
	require.NoError(t, err)
	cfg, err := LoadConfig(writeFile(t, "roundtrip.yaml", string(data)))
	require.NoError(t, err)
	if diff := cmp.Diff(Defaults(), cfg); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
