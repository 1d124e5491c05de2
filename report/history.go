package report

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	// registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
)

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	run_id   TEXT PRIMARY KEY,
	seed     INTEGER NOT NULL,
	started  TIMESTAMP NOT NULL,
	finished TIMESTAMP NOT NULL,
	passed   BOOLEAN NOT NULL
);
CREATE TABLE IF NOT EXISTS steps (
	run_id      TEXT NOT NULL REFERENCES runs(run_id),
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL,
	duration_ns INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);`
	insertRunSQL  = `INSERT INTO runs (run_id, seed, started, finished, passed) VALUES (?, ?, ?, ?, ?)`
	insertStepSQL = `INSERT INTO steps (run_id, position, name, status, error, duration_ns) VALUES (?, ?, ?, ?, ?, ?)`
	selectRunsSQL = `SELECT run_id, seed, started, finished, passed FROM runs ORDER BY started DESC LIMIT ?`
	selectStepSQL = `SELECT name, status, error, duration_ns FROM steps WHERE run_id = ? ORDER BY position`
)

// Run is one row of the run history.
type Run struct {
	RunID    uuid.UUID
	Seed     int64
	Started  time.Time
	Finished time.Time
	Passed   bool
	Steps    []StepResult
}

// HistoryStore persists run outcomes in a SQLite database.
type HistoryStore struct {
	dbPath string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewHistoryStore returns a store backed by the database at dbPath. The database is created on first use.
func NewHistoryStore(dbPath string) *HistoryStore {
	return &HistoryStore{dbPath: dbPath}
}

func (s *HistoryStore) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.dbErr = errors.Wrap(err, "opening history database")
			return
		}
		if _, err = db.Exec(initSchemaSQL); err != nil {
			s.dbErr = multierr.Combine(errors.Wrap(err, "initializing schema"), db.Close())
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

// SaveRun stores a report and its steps in one transaction.
func (s *HistoryStore) SaveRun(ctx context.Context, r *Report) (err error) {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, insertRunSQL, r.RunID.String(), r.Seed, r.Started, r.Finished, r.Passed()); err != nil {
		return errors.Wrap(err, "inserting run")
	}
	for i, step := range r.Steps {
		if _, err = tx.ExecContext(ctx, insertStepSQL,
			r.RunID.String(), i, step.Name, string(step.Status), step.Err, int64(step.Duration)); err != nil {
			return errors.Wrapf(err, "inserting step %s", step.Name)
		}
	}
	return tx.Commit()
}

// Runs returns the most recent runs, newest first, with their steps.
func (s *HistoryStore) Runs(ctx context.Context, limit int) (runs []Run, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying runs")
	}
	defer func() {
		err = multierr.Combine(err, rows.Close())
	}()

	for rows.Next() {
		var (
			run   Run
			runID string
		)
		if err = rows.Scan(&runID, &run.Seed, &run.Started, &run.Finished, &run.Passed); err != nil {
			return nil, errors.Wrap(err, "scanning run")
		}
		if run.RunID, err = uuid.Parse(runID); err != nil {
			return nil, errors.Wrapf(err, "parsing run id %q", runID)
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Steps, err = s.steps(ctx, db, runs[i].RunID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *HistoryStore) steps(ctx context.Context, db *sql.DB, runID uuid.UUID) (steps []StepResult, err error) {
	rows, err := db.QueryContext(ctx, selectStepSQL, runID.String())
	if err != nil {
		return nil, errors.Wrap(err, "querying steps")
	}
	defer func() {
		err = multierr.Combine(err, rows.Close())
	}()

	for rows.Next() {
		var (
			step     StepResult
			status   string
			duration int64
		)
		if err = rows.Scan(&step.Name, &status, &step.Err, &duration); err != nil {
			return nil, errors.Wrap(err, "scanning step")
		}
		step.Status = Status(status)
		step.Duration = time.Duration(duration)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
			s.db = nil
		}
	})
	return s.closeErr
}

// HistoryTable renders runs as a table, one row per run.
func HistoryTable(runs []Run) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Run", "Seed", "Started", "Duration", "Steps", "Failed", "Result"})
	for _, run := range runs {
		failed := lo.CountBy(run.Steps, func(s StepResult) bool { return s.Status == StatusFailed })
		t.AppendRow(table.Row{
			run.RunID.String(),
			run.Seed,
			humanize.Time(run.Started),
			FormatDuration(run.Finished.Sub(run.Started)),
			len(run.Steps),
			failed,
			lo.Ternary(run.Passed, "PASSED", "FAILED"),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Runs", len(runs)})
	return t.Render()
}
