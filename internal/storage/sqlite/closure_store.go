package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/stdesc/internal/stdesc"
	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// Run is one replay of a scan sequence.
type Run struct {
	RunID        string             `json:"run_id"`
	Sequence     string             `json:"sequence"`
	Params       map[string]float64 `json:"params,omitempty"`
	FrameCount   int                `json:"frame_count"`
	ClosureCount int                `json:"closure_count"`
	StartedAt    int64              `json:"started_at"`
	// FinishedAt is zero while the run is in progress.
	FinishedAt int64 `json:"finished_at,omitempty"`
}

// transformRecord is the JSON shape of a stored transform.
type transformRecord struct {
	R [9]float64 `json:"r"`
	T [3]float64 `json:"t"`
}

// ClosureStore records runs and their per-frame results.
type ClosureStore struct {
	db *sql.DB
}

// NewClosureStore creates a ClosureStore on an opened database.
func NewClosureStore(db *DB) *ClosureStore {
	return &ClosureStore{db: db.DB}
}

// CreateRun inserts a new in-progress run for sequence.
func (s *ClosureStore) CreateRun(sequence string, params map[string]float64) (*Run, error) {
	run := &Run{
		RunID:     uuid.New().String(),
		Sequence:  sequence,
		Params:    params,
		StartedAt: time.Now().UnixNano(),
	}

	var paramsStr interface{}
	if len(params) > 0 {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		paramsStr = string(b)
	}

	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO stdesc_runs (run_id, sequence, params_json, started_at)
			VALUES (?, ?, ?, ?)`,
			run.RunID, run.Sequence, paramsStr, run.StartedAt,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordResult stores the decision for one frame. Recording the same frame
// twice replaces the earlier row.
func (s *ClosureStore) RecordResult(runID string, r stdesc.LoopClosureResult) error {
	tf, err := json.Marshal(transformRecord{R: r.Transform.R, T: [3]float64{r.Transform.T.X, r.Transform.T.Y, r.Transform.T.Z}})
	if err != nil {
		return fmt.Errorf("marshal transform: %w", err)
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT OR REPLACE INTO stdesc_frame_results (
				run_id, frame_id, match_frame_id, match_count, score, votes, transform_json
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, r.FrameID, r.MatchFrameID, r.MatchCount, r.Score, r.Votes, string(tf),
		)
		return err
	})
}

// FinishRun stamps the run as complete and stores its totals.
func (s *ClosureStore) FinishRun(runID string) error {
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`
			UPDATE stdesc_runs SET
				frame_count = (SELECT COUNT(*) FROM stdesc_frame_results WHERE run_id = ?),
				closure_count = (SELECT COUNT(*) FROM stdesc_frame_results WHERE run_id = ? AND match_frame_id >= 0),
				finished_at = ?
			WHERE run_id = ?`,
			runID, runID, time.Now().UnixNano(), runID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

// GetRun returns a single run by id.
func (s *ClosureStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, sequence, params_json, frame_count, closure_count, started_at, finished_at
		FROM stdesc_runs
		WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns the runs of a sequence, newest first. An empty sequence
// lists every run.
func (s *ClosureStore) ListRuns(sequence string) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, sequence, params_json, frame_count, closure_count, started_at, finished_at
		FROM stdesc_runs
		WHERE ? = '' OR sequence = ?
		ORDER BY started_at DESC, rowid DESC`, sequence, sequence)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListResults returns the frame results of a run in frame order. With
// closuresOnly set, unmatched frames are left out.
func (s *ClosureStore) ListResults(runID string, closuresOnly bool) ([]stdesc.LoopClosureResult, error) {
	only := 0
	if closuresOnly {
		only = 1
	}
	rows, err := s.db.Query(`
		SELECT frame_id, match_frame_id, match_count, score, votes, transform_json
		FROM stdesc_frame_results
		WHERE run_id = ? AND (? = 0 OR match_frame_id >= 0)
		ORDER BY frame_id`, runID, only)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []stdesc.LoopClosureResult
	for rows.Next() {
		var (
			r  stdesc.LoopClosureResult
			tf string
		)
		if err := rows.Scan(&r.FrameID, &r.MatchFrameID, &r.MatchCount, &r.Score, &r.Votes, &tf); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var rec transformRecord
		if err := json.Unmarshal([]byte(tf), &rec); err != nil {
			return nil, fmt.Errorf("frame %d transform: %w", r.FrameID, err)
		}
		r.Transform = l1cloud.Transform{R: rec.R, T: l1cloud.Point{X: rec.T[0], Y: rec.T[1], Z: rec.T[2]}}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		paramsStr  sql.NullString
		finishedAt sql.NullInt64
	)
	if err := row.Scan(&run.RunID, &run.Sequence, &paramsStr, &run.FrameCount,
		&run.ClosureCount, &run.StartedAt, &finishedAt); err != nil {
		return nil, err
	}
	if paramsStr.Valid {
		if err := json.Unmarshal([]byte(paramsStr.String), &run.Params); err != nil {
			return nil, fmt.Errorf("run %s params: %w", run.RunID, err)
		}
	}
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Int64
	}
	return &run, nil
}
