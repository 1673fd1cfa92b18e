package sqlite

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/echo.report/internal/echo/l6targets"
	"github.com/banshee-data/echo.report/internal/timeutil"
)

// TargetStore persists the targets of a run. Non-finite measurements are
// stored as NULL and read back as NaN.
type TargetStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewTargetStore creates a TargetStore. A nil clock uses the wall clock.
func NewTargetStore(db *sql.DB, clock timeutil.Clock) *TargetStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &TargetStore{db: db, clock: clock}
}

// InsertSet writes every target of a finalized set under runID in a single
// transaction. seq follows the set's (ping, sample) order.
func (s *TargetStore) InsertSet(runID string, set *l6targets.Set) error {
	if !set.Finalized() {
		return fmt.Errorf("insert targets for run %s: set is not finalized", runID)
	}
	targets := set.Targets()
	return retryOnBusy(s.clock, func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO echo_targets (
				run_id, seq, ping, sample, linear_index, ping_time_ns,
				ts_comp, ts_uncomp, range_m, range_display_m, range_min_m, range_max_m,
				env_before, env_after, pulse_length_norm, pulse_length,
				angle_minor, angle_major, angle_std_minor, angle_std_major,
				heave, roll, pitch, heading, distance
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for seq, t := range targets {
			var pingTime sql.NullInt64
			if !t.Time.IsZero() {
				pingTime = sql.NullInt64{Int64: t.Time.UnixNano(), Valid: true}
			}
			if _, err := stmt.Exec(
				runID, seq, t.Ping, t.Sample, t.LinearIndex, pingTime,
				t.TSComp, t.TSUncomp,
				nullFloat(t.Range), nullFloat(t.RangeDisplay), nullFloat(t.RangeMin), nullFloat(t.RangeMax),
				t.EnvBefore, t.EnvAfter, t.PulseLengthNorm, t.PulseLength,
				nullFloat(t.AngleMinor), nullFloat(t.AngleMajor), nullFloat(t.AngleStdMinor), nullFloat(t.AngleStdMajor),
				nullFloat(t.Heave), nullFloat(t.Roll), nullFloat(t.Pitch), nullFloat(t.Heading), nullFloat(t.Distance),
			); err != nil {
				return fmt.Errorf("insert target %d: %w", seq, err)
			}
		}
		return tx.Commit()
	})
}

// ListByRun returns the targets of runID in insertion order.
func (s *TargetStore) ListByRun(runID string) ([]l6targets.Target, error) {
	rows, err := s.db.Query(`
		SELECT ping, sample, linear_index, ping_time_ns,
		       ts_comp, ts_uncomp, range_m, range_display_m, range_min_m, range_max_m,
		       env_before, env_after, pulse_length_norm, pulse_length,
		       angle_minor, angle_major, angle_std_minor, angle_std_major,
		       heave, roll, pitch, heading, distance
		FROM echo_targets
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var out []l6targets.Target
	for rows.Next() {
		var t l6targets.Target
		var pingTime sql.NullInt64
		var rng, disp, rmin, rmax sql.NullFloat64
		var amin, amaj, smin, smaj sql.NullFloat64
		var heave, roll, pitch, heading, dist sql.NullFloat64
		if err := rows.Scan(
			&t.Ping, &t.Sample, &t.LinearIndex, &pingTime,
			&t.TSComp, &t.TSUncomp, &rng, &disp, &rmin, &rmax,
			&t.EnvBefore, &t.EnvAfter, &t.PulseLengthNorm, &t.PulseLength,
			&amin, &amaj, &smin, &smaj,
			&heave, &roll, &pitch, &heading, &dist,
		); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		if pingTime.Valid {
			t.Time = time.Unix(0, pingTime.Int64).UTC()
		}
		t.Range, t.RangeDisplay, t.RangeMin, t.RangeMax = orNaN(rng), orNaN(disp), orNaN(rmin), orNaN(rmax)
		t.AngleMinor, t.AngleMajor = orNaN(amin), orNaN(amaj)
		t.AngleStdMinor, t.AngleStdMajor = orNaN(smin), orNaN(smaj)
		t.Heave, t.Roll, t.Pitch = orNaN(heave), orNaN(roll), orNaN(pitch)
		t.Heading, t.Distance = orNaN(heading), orNaN(dist)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountByRun returns how many targets runID has.
func (s *TargetStore) CountByRun(runID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM echo_targets WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count targets: %w", err)
	}
	return n, nil
}

// DeleteByRun removes every target of runID and reports how many went.
// The run row is left in place.
func (s *TargetStore) DeleteByRun(runID string) (int, error) {
	var n int64
	err := retryOnBusy(s.clock, func() error {
		res, err := s.db.Exec(`DELETE FROM echo_targets WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete targets: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
