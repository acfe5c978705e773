package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/p-blackswan/test-dashboard/internal/models"
)

const runColumns = `id, project_id, timestamp, stats_total, stats_passed, stats_failed,
	stats_skipped, stats_duration, source, exit_code`

// InsertRun records a run, ensures its project exists and trims the project's
// history to the most recent retain runs, all in one transaction. The run ID
// is the submission time in milliseconds, bumped past the newest existing ID
// so IDs stay strictly increasing.
func (s *Store) InsertRun(ctx context.Context, in models.NewRun, retain int, now time.Time) (*models.Run, error) {
	run := &models.Run{
		ProjectID: in.ProjectID,
		Timestamp: now.UTC().Truncate(time.Millisecond),
		Stats:     in.Stats,
		Source:    in.Source,
		ExitCode:  in.Stats.ExitCode(),
		Suites:    orEmptyArray(in.Suites),
		Errors:    orEmptyArray(in.Errors),
	}

	err := s.WithTx(ctx, func(tx *Tx) error {
		var last int64
		if err := tx.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM test_runs`).Scan(&last); err != nil {
			return fmt.Errorf("failed to read last run id: %w", err)
		}
		run.ID = now.UnixMilli()
		if run.ID <= last {
			run.ID = last + 1
		}

		_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO test_runs (
			id, project_id, timestamp, stats_total, stats_passed, stats_failed,
			stats_skipped, stats_duration, source, exit_code, suites, errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.ProjectID, run.Timestamp.UnixMilli(),
			run.Stats.Total, run.Stats.Passed, run.Stats.Failed, run.Stats.Skipped, run.Stats.Duration,
			run.Source, run.ExitCode, string(run.Suites), string(run.Errors),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		if err := tx.EnsureProject(ctx, run.ProjectID, now); err != nil {
			return err
		}
		_, err = tx.TrimRuns(ctx, run.ProjectID, retain)
		return err
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// TrimRuns deletes all but the newest keep runs of a project.
func (tx *Tx) TrimRuns(ctx context.Context, projectID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := tx.tx.ExecContext(ctx, `
	DELETE FROM test_runs
	WHERE project_id = ?
	  AND id NOT IN (
		SELECT id FROM test_runs WHERE project_id = ? ORDER BY id DESC LIMIT ?
	  )`, projectID, projectID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to trim runs: %w", err)
	}
	return res.RowsAffected()
}

// LatestTimestamp returns the insertion time of the newest run, or nil.
func (s *Store) LatestTimestamp(ctx context.Context) (*time.Time, error) {
	var ms sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM test_runs`).Scan(&ms); err != nil {
		return nil, fmt.Errorf("failed to read latest run timestamp: %w", err)
	}
	return nullTime(ms), nil
}

// LatestRuns returns the newest run of every project that has one, keyed by project.
func (s *Store) LatestRuns(ctx context.Context) (map[string]models.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+runColumns+` FROM test_runs
	WHERE id IN (SELECT MAX(id) FROM test_runs GROUP BY project_id)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest runs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.Run)
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		out[run.ProjectID] = *run
	}
	return out, rows.Err()
}

// ListRuns returns up to limit runs of a project, newest first. Suite and
// error payloads are included when withPayload is set.
func (s *Store) ListRuns(ctx context.Context, projectID string, limit int, withPayload bool) ([]models.Run, error) {
	cols := runColumns
	if withPayload {
		cols += `, suites, errors`
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cols+` FROM test_runs WHERE project_id = ? ORDER BY id DESC LIMIT ?`,
		projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows, withPayload)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// CountRuns returns the number of stored runs for a project.
func (s *Store) CountRuns(ctx context.Context, projectID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM test_runs WHERE project_id = ?`, projectID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

func scanRun(row scanner, withPayload bool) (*models.Run, error) {
	var (
		run models.Run
		ts  int64
	)
	dest := []any{
		&run.ID, &run.ProjectID, &ts, &run.Stats.Total, &run.Stats.Passed, &run.Stats.Failed,
		&run.Stats.Skipped, &run.Stats.Duration, &run.Source, &run.ExitCode,
	}
	var suites, errs string
	if withPayload {
		dest = append(dest, &suites, &errs)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Timestamp = fromMillis(ts)
	if withPayload {
		run.Suites = json.RawMessage(suites)
		run.Errors = json.RawMessage(errs)
	}
	return &run, nil
}

func orEmptyArray(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage("[]")
	}
	return raw
}
