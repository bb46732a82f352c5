package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// History keeps the invocation log in SQLite
type History struct {
	db *sql.DB
}

// NewHistory opens the invocation log, creating the schema if needed
func NewHistory(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}

	if err := h.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return h, nil
}

// Close closes the database connection
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS invocations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pipeline TEXT NOT NULL,
			branch TEXT NOT NULL,
			target TEXT NOT NULL,
			status TEXT NOT NULL,
			exit_code INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			duration_seconds REAL,
			error_message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_pipeline_started
		ON invocations(pipeline, started_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// RecordInvocation inserts one invocation into the log
func (h *History) RecordInvocation(ctx context.Context, record *InvocationRecord) (int64, error) {
	now := time.Now().UTC()

	startedAt := record.StartedAt
	if startedAt.IsZero() {
		startedAt = now
	}

	var completedAt *string
	if record.CompletedAt != nil {
		formatted := record.CompletedAt.UTC().Format(time.RFC3339)
		completedAt = &formatted
	} else {
		formatted := now.Format(time.RFC3339)
		completedAt = &formatted
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO invocations
		(pipeline, branch, target, status, exit_code, started_at,
		 completed_at, duration_seconds, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.Pipeline,
		record.Branch,
		record.Target,
		record.Status,
		record.ExitCode,
		startedAt.UTC().Format(time.RFC3339),
		completedAt,
		record.DurationSeconds,
		record.ErrorMessage,
	)

	if err != nil {
		return 0, fmt.Errorf("failed to insert invocation record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetLatestInvocation returns the most recent invocation for a pipeline
func (h *History) GetLatestInvocation(ctx context.Context, pipeline string) (*InvocationRecord, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, pipeline, branch, target, status, exit_code, started_at,
		       completed_at, duration_seconds, error_message
		FROM invocations
		WHERE pipeline = ?
		ORDER BY id DESC
		LIMIT 1
	`, pipeline)

	record, err := scanInvocationRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest invocation: %w", err)
	}

	return record, nil
}

// GetInvocationHistory returns recent invocations for a pipeline, newest first
func (h *History) GetInvocationHistory(ctx context.Context, pipeline string, limit int) ([]InvocationRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, pipeline, branch, target, status, exit_code, started_at,
		       completed_at, duration_seconds, error_message
		FROM invocations
		WHERE pipeline = ?
		ORDER BY id DESC
		LIMIT ?
	`, pipeline, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocation history: %w", err)
	}
	defer rows.Close()

	var records []InvocationRecord
	for rows.Next() {
		record, err := scanInvocationRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invocation record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// GetAllPipelinesStatus returns the latest invocation for each pipeline
func (h *History) GetAllPipelinesStatus(ctx context.Context) (map[string]*InvocationRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT i1.id, i1.pipeline, i1.branch, i1.target, i1.status, i1.exit_code,
		       i1.started_at, i1.completed_at, i1.duration_seconds, i1.error_message
		FROM invocations i1
		INNER JOIN (
			SELECT pipeline, MAX(id) as max_id
			FROM invocations
			GROUP BY pipeline
		) i2
		ON i1.pipeline = i2.pipeline AND i1.id = i2.max_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all pipelines status: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*InvocationRecord)
	for rows.Next() {
		record, err := scanInvocationRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invocation record: %w", err)
		}
		result[record.Pipeline] = record
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInvocationRecord(s scanner) (*InvocationRecord, error) {
	var record InvocationRecord
	var startedAtStr string
	var completedAtStr sql.NullString

	err := s.Scan(
		&record.ID,
		&record.Pipeline,
		&record.Branch,
		&record.Target,
		&record.Status,
		&record.ExitCode,
		&startedAtStr,
		&completedAtStr,
		&record.DurationSeconds,
		&record.ErrorMessage,
	)

	if err != nil {
		return nil, err
	}

	startedAt, err := time.Parse(time.RFC3339, startedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	record.StartedAt = startedAt

	if completedAtStr.Valid {
		completedAt, err := time.Parse(time.RFC3339, completedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at timestamp: %w", err)
		}
		record.CompletedAt = &completedAt
	}

	return &record, nil
}
