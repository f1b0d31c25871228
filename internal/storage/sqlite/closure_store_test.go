package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stdesc/internal/monitoring"
	"github.com/banshee-data/stdesc/internal/stdesc"
	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	restore := monitoring.Mute()
	t.Cleanup(restore)

	db, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_AppliesPragmasAndSchema(t *testing.T) {
	db := openTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	for _, table := range []string{"stdesc_runs", "stdesc_frame_results"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestOpen_ReopenIsNoChange(t *testing.T) {
	restore := monitoring.Mute()
	defer restore()

	path := filepath.Join(t.TempDir(), "results.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.MigrateUp())
}

func TestClosureStore_RunLifecycle(t *testing.T) {
	store := NewClosureStore(openTestDB(t))

	params := map[string]float64{"skip_near_num": 50, "icp_threshold": 0.5}
	run, err := store.CreateRun("00", params)
	require.NoError(t, err)
	_, err = uuid.Parse(run.RunID)
	require.NoError(t, err, "run ids are uuids")

	tf := l1cloud.RotationZYX(0.1, 0, 0, l1cloud.Point{X: 1, Y: -2, Z: 0.5})
	results := []stdesc.LoopClosureResult{
		{FrameID: 0, MatchFrameID: stdesc.NoMatch, Transform: l1cloud.Identity()},
		{FrameID: 1, MatchFrameID: stdesc.NoMatch, Transform: l1cloud.Identity()},
		{FrameID: 2, MatchFrameID: 0, MatchCount: 12, Score: 0.75, Votes: 31, Transform: tf},
	}
	for _, r := range results {
		require.NoError(t, store.RecordResult(run.RunID, r))
	}
	require.NoError(t, store.FinishRun(run.RunID))

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "00", got.Sequence)
	assert.Equal(t, params, got.Params)
	assert.Equal(t, 3, got.FrameCount)
	assert.Equal(t, 1, got.ClosureCount)
	assert.NotZero(t, got.FinishedAt)

	all, err := store.ListResults(run.RunID, false)
	require.NoError(t, err)
	assert.Equal(t, results, all)

	closures, err := store.ListResults(run.RunID, true)
	require.NoError(t, err)
	require.Len(t, closures, 1)
	assert.Equal(t, 2, closures[0].FrameID)
	assert.Equal(t, tf, closures[0].Transform)
}

func TestClosureStore_RecordResultReplaces(t *testing.T) {
	store := NewClosureStore(openTestDB(t))
	run, err := store.CreateRun("05", nil)
	require.NoError(t, err)

	require.NoError(t, store.RecordResult(run.RunID, stdesc.LoopClosureResult{FrameID: 7, MatchFrameID: stdesc.NoMatch, Transform: l1cloud.Identity()}))
	require.NoError(t, store.RecordResult(run.RunID, stdesc.LoopClosureResult{FrameID: 7, MatchFrameID: 1, Score: 0.4, Transform: l1cloud.Identity()}))

	got, err := store.ListResults(run.RunID, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].MatchFrameID)
}

func TestClosureStore_ResultRequiresRun(t *testing.T) {
	store := NewClosureStore(openTestDB(t))
	err := store.RecordResult("missing", stdesc.LoopClosureResult{FrameID: 0, MatchFrameID: stdesc.NoMatch})
	assert.Error(t, err, "foreign key on run_id")
}

func TestClosureStore_UnknownRun(t *testing.T) {
	store := NewClosureStore(openTestDB(t))

	_, err := store.GetRun("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = store.FinishRun("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestClosureStore_ListRuns(t *testing.T) {
	store := NewClosureStore(openTestDB(t))

	a, err := store.CreateRun("00", nil)
	require.NoError(t, err)
	_, err = store.CreateRun("02", nil)
	require.NoError(t, err)
	c, err := store.CreateRun("00", nil)
	require.NoError(t, err)

	runs, err := store.ListRuns("00")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, c.RunID, runs[0].RunID, "newest first")
	assert.Equal(t, a.RunID, runs[1].RunID)
	assert.Nil(t, runs[0].Params)

	all, err := store.ListRuns("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
