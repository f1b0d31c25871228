package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stdesc/internal/config"
	"github.com/banshee-data/stdesc/internal/dataset"
	"github.com/banshee-data/stdesc/internal/monitoring"
	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
	"github.com/banshee-data/stdesc/internal/storage/sqlite"
	"github.com/banshee-data/stdesc/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTinyDataset(t *testing.T, n int) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "seq07")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i := 0; i < n; i++ {
		pts := []l1cloud.Point{{X: float64(i)}, {Y: 1}, {Z: 1}}
		require.NoError(t, dataset.WriteScan(filepath.Join(dir, dataset.ScanName(i, false)), pts))
	}
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}

func TestConfigCommand_PrintsDefaults(t *testing.T) {
	out, err := execute(t, "config")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "printed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o644))
	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(config.Defaults().ToMap(), loaded.ToMap()); diff != "" {
		t.Errorf("printed config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigCommand_Overrides(t *testing.T) {
	out, err := execute(t, "config", "--set", "skip_near_num=30", "--set", "icp_threshold=0.3")
	require.NoError(t, err)
	assert.Contains(t, out, "skip_near_num: 30")
	assert.Contains(t, out, "icp_threshold: 0.3")

	_, err = execute(t, "config", "--set", "no_such_option=1")
	assert.Error(t, err)

	_, err = execute(t, "config", "--set", "voxel_size=0")
	assert.Error(t, err, "built config is validated")
}

func TestRunCommand_RequiresDataset(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset")
}

func TestRunCommand_ReplaysDirectory(t *testing.T) {
	defer monitoring.Mute()()
	dir := writeTinyDataset(t, 3)
	results := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	gt := filepath.Join(t.TempDir(), "gt.csv")
	require.NoError(t, os.WriteFile(gt, []byte("0,2\n"), 0o644))

	out, err := execute(t, "run",
		"--dataset", dir,
		"--gt", gt,
		"--results", results,
		"--db", dbPath,
		"--set", "skip_near_num=1",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "sequence seq07: 3 frames, 0 loop closures")
	assert.Contains(t, out, "threshold")

	latest := filepath.Join(results, "stdesc_results", "seq07", "latest")
	_, err = os.Stat(filepath.Join(latest, "metrics.txt"))
	assert.NoError(t, err)

	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	runs, err := sqlite.NewClosureStore(db).ListRuns("seq07")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].FrameCount)
	assert.Equal(t, 1.0, runs[0].Params["skip_near_num"])
	assert.True(t, strings.Contains(out, runs[0].RunID))
}

func TestRunCommand_MissingDataset(t *testing.T) {
	_, err := execute(t, "run", "--dataset", filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]float64
		wantErr bool
	}{
		{name: "empty", args: nil, want: map[string]float64{}},
		{name: "single", args: []string{"ds_size=0.5"}, want: map[string]float64{"ds_size": 0.5}},
		{name: "spaces", args: []string{" skip_near_num = 20 "}, want: map[string]float64{"skip_near_num": 20}},
		{name: "later wins", args: []string{"candidate_num=10", "candidate_num=20"}, want: map[string]float64{"candidate_num": 20}},
		{name: "no equals", args: []string{"ds_size"}, wantErr: true},
		{name: "no name", args: []string{"=1"}, wantErr: true},
		{name: "not a number", args: []string{"ds_size=big"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOverrides(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseOverrides mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
