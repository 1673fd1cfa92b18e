package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/echo.report/internal/timeutil"
	"github.com/google/uuid"
)

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one detection invocation over a channel.
type Run struct {
	RunID        string          `json:"run_id"`
	Channel      string          `json:"channel"`
	Variant      string          `json:"variant"`
	Source       string          `json:"source,omitempty"`
	ParamsJSON   json.RawMessage `json:"params_json,omitempty"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Pings        int             `json:"pings"`
	Samples      int             `json:"samples"`
	Blocks       int             `json:"blocks"`
	TargetCount  int             `json:"target_count"`
	DurationNs   int64           `json:"duration_ns"`
	CreatedAt    int64           `json:"created_at"`
	CompletedAt  int64           `json:"completed_at,omitempty"`
}

// RunCounts are the figures recorded when a run completes.
type RunCounts struct {
	Pings       int
	Samples     int
	Blocks      int
	TargetCount int
	Duration    time.Duration
}

// RunStore persists detection runs.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore. A nil clock uses the wall clock.
func NewRunStore(db *sql.DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db, clock: clock}
}

// Create inserts run in the running state. An empty RunID is replaced by a
// fresh UUID and CreatedAt is stamped from the store's clock when zero.
func (s *RunStore) Create(run *Run) error {
	if run.Channel == "" || run.Variant == "" {
		return fmt.Errorf("create run: channel and variant are required")
	}
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}
	run.Status = RunStatusRunning

	var params interface{}
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}
	return retryOnBusy(s.clock, func() error {
		_, err := s.db.Exec(`
			INSERT INTO echo_runs (run_id, channel, variant, source, params_json, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Channel, run.Variant, nullString(run.Source), params, run.Status, run.CreatedAt,
		)
		return err
	})
}

// Complete marks a run completed and records its counts.
func (s *RunStore) Complete(runID string, c RunCounts) error {
	now := s.clock.Now().UnixNano()
	return s.update(runID, `
		UPDATE echo_runs
		SET status = ?, pings = ?, samples = ?, blocks = ?, target_count = ?,
		    duration_ns = ?, completed_at = ?
		WHERE run_id = ?`,
		RunStatusCompleted, c.Pings, c.Samples, c.Blocks, c.TargetCount,
		c.Duration.Nanoseconds(), now, runID,
	)
}

// Fail marks a run failed with cause's message.
func (s *RunStore) Fail(runID string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	now := s.clock.Now().UnixNano()
	return s.update(runID, `
		UPDATE echo_runs SET status = ?, error_message = ?, completed_at = ?
		WHERE run_id = ?`,
		RunStatusFailed, msg, now, runID,
	)
}

func (s *RunStore) update(runID, query string, args ...interface{}) error {
	return retryOnBusy(s.clock, func() error {
		res, err := s.db.Exec(query, args...)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
}

const runColumns = `run_id, channel, variant, source, params_json, status, error_message,
	pings, samples, blocks, target_count, duration_ns, created_at, completed_at`

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM echo_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// List returns the most recent runs first. An empty channel lists every
// channel; limit <= 0 means no limit.
func (s *RunStore) List(channel string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT `+runColumns+` FROM echo_runs
		WHERE ? = '' OR channel = ?
		ORDER BY created_at DESC, run_id
		LIMIT ?`, channel, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Delete removes a run and, through the foreign key, its targets.
func (s *RunStore) Delete(runID string) error {
	return s.update(runID, `DELETE FROM echo_runs WHERE run_id = ?`, runID)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var source, params, errMsg sql.NullString
	var completed sql.NullInt64
	if err := sc.Scan(
		&r.RunID, &r.Channel, &r.Variant, &source, &params, &r.Status, &errMsg,
		&r.Pings, &r.Samples, &r.Blocks, &r.TargetCount, &r.DurationNs, &r.CreatedAt, &completed,
	); err != nil {
		return nil, err
	}
	r.Source = source.String
	r.ErrorMessage = errMsg.String
	r.CompletedAt = completed.Int64
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
