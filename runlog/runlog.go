// Package runlog records every publishing run in a SQLite database.
package runlog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Custom errors for run log operations
var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunFinished   = errors.New("run already finished")
	ErrInvalidStatus = errors.New("status must be running, succeeded or failed")
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const (
	pageDateLayout = "2006-01-02"
	// Fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// RunLog stores run records using SQLite.
type RunLog struct {
	db *sql.DB
}

// Run is one attempt to publish a day.
type Run struct {
	RunID      uuid.UUID  `json:"run_id"`
	PageDate   time.Time  `json:"page_date"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	SourceURL  *string    `json:"source_url,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

// Duration returns how long a finished run took, or zero.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunFilter represents filtering options for listing runs.
type RunFilter struct {
	Status *string // Filter by status
	Limit  int     // Pagination limit
	Offset int     // Pagination offset
}

// Open opens or creates the run log database at dbPath.
func Open(dbPath string) (*RunLog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	log := &RunLog{db: db}
	if err := log.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return log, nil
}

// initSchema creates the runs table if it doesn't exist.
func (l *RunLog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		page_date TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		source_url TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (l *RunLog) Close() error {
	return l.db.Close()
}

// Start records a new running run for the page of pageDate.
func (l *RunLog) Start(pageDate time.Time) (*Run, error) {
	run := &Run{
		RunID:     uuid.New(),
		PageDate:  day(pageDate),
		StartedAt: time.Now().UTC(),
		Status:    StatusRunning,
	}

	query := `
		INSERT INTO runs (run_id, page_date, started_at, status)
		VALUES (?, ?, ?, ?)
	`

	_, err := l.db.Exec(query,
		run.RunID.String(),
		run.PageDate.Format(pageDateLayout),
		formatTime(&run.StartedAt),
		run.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	run.StartedAt = run.StartedAt.Truncate(0)
	return run, nil
}

// Finish marks a running run as succeeded, or failed when runErr is not
// nil. sourceURL may be empty when the run failed before selecting an item.
func (l *RunLog) Finish(runID uuid.UUID, sourceURL string, runErr error) error {
	run, err := l.GetRun(runID)
	if err != nil {
		return err
	}
	if run.Status != StatusRunning {
		return fmt.Errorf("%w: %s", ErrRunFinished, runID)
	}

	now := time.Now().UTC()
	status := StatusSucceeded
	var errText *string
	if runErr != nil {
		status = StatusFailed
		msg := runErr.Error()
		errText = &msg
	}

	var source *string
	if sourceURL != "" {
		source = &sourceURL
	}

	query := `
		UPDATE runs
		SET finished_at = ?, status = ?, source_url = ?, error = ?
		WHERE run_id = ?
	`

	result, err := l.db.Exec(query, formatTime(&now), status, source, errText, runID.String())
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRunNotFound
	}

	return nil
}

// GetRun retrieves a run by ID.
func (l *RunLog) GetRun(runID uuid.UUID) (*Run, error) {
	query := `
		SELECT run_id, page_date, started_at, finished_at, status, source_url, error
		FROM runs
		WHERE run_id = ?
	`

	run, err := scanRun(l.db.QueryRow(query, runID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs, most recent first.
func (l *RunLog) ListRuns(filter RunFilter) ([]Run, error) {
	query := `
		SELECT run_id, page_date, started_at, finished_at, status, source_url, error
		FROM runs
	`

	var whereClauses []string
	var args []any

	if filter.Status != nil {
		switch *filter.Status {
		case StatusRunning, StatusSucceeded, StatusFailed:
		default:
			return nil, ErrInvalidStatus
		}
		whereClauses = append(whereClauses, "status = ?")
		args = append(args, *filter.Status)
	}

	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query += " ORDER BY started_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var runIDStr, pageDateStr, startedAtStr, status string
	var finishedAtStr, sourceURL, errText sql.NullString

	if err := row.Scan(&runIDStr, &pageDateStr, &startedAtStr, &finishedAtStr, &status, &sourceURL, &errText); err != nil {
		return nil, err
	}

	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid run_id %q: %w", runIDStr, err)
	}
	pageDate, err := time.Parse(pageDateLayout, pageDateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid page_date %q: %w", pageDateStr, err)
	}

	run := &Run{
		RunID:     runID,
		PageDate:  pageDate,
		StartedAt: parseTime(startedAtStr),
		Status:    status,
	}
	if finishedAtStr.Valid {
		t := parseTime(finishedAtStr.String)
		run.FinishedAt = &t
	}
	if sourceURL.Valid {
		run.SourceURL = &sourceURL.String
	}
	if errText.Valid {
		run.Error = &errText.String
	}

	return run, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
