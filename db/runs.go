// ABOUTME: Records background job runs in the sync_state table
// ABOUTME: One row per job with its status, last completion, and last summary or error
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunStatus values match the CHECK constraint on sync_state.status.
type RunStatus string

const (
	RunIdle    RunStatus = "idle"
	RunSyncing RunStatus = "syncing"
	RunError   RunStatus = "error"
)

// RunState is the last known state of a background job such as reconcile.
type RunState struct {
	Service      string
	Status       RunStatus
	LastRunAt    *time.Time
	LastSummary  string
	ErrorMessage string
	UpdatedAt    time.Time
}

const runColumns = `service, status, last_sync_time, COALESCE(last_summary, ''), COALESCE(error_message, ''), updated_at`

// GetRunState returns the state for service, or nil if it never ran.
func GetRunState(ctx context.Context, db *sql.DB, service string) (*RunState, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_state WHERE service = ?`, service)
	state, err := scanRunState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run state: %w", err)
	}
	return state, nil
}

// ListRunStates returns every recorded job ordered by name.
func ListRunStates(ctx context.Context, db *sql.DB) ([]RunState, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM sync_state ORDER BY service`)
	if err != nil {
		return nil, fmt.Errorf("failed to query run states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []RunState
	for rows.Next() {
		state, err := scanRunState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run state: %w", err)
		}
		states = append(states, *state)
	}
	return states, rows.Err()
}

// MarkRunStarted flags service as running. The previous summary is kept.
func MarkRunStarted(ctx context.Context, db *sql.DB, service string) error {
	return setRunStatus(ctx, db, service, RunSyncing, sql.NullString{})
}

// MarkRunFailed records runErr against service.
func MarkRunFailed(ctx context.Context, db *sql.DB, service string, runErr error) error {
	return setRunStatus(ctx, db, service, RunError, sql.NullString{String: runErr.Error(), Valid: true})
}

// MarkRunComplete records a finished run with a short summary.
func MarkRunComplete(ctx context.Context, db *sql.DB, service, summary string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (service, last_sync_time, last_summary, status, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			last_sync_time = CURRENT_TIMESTAMP,
			last_summary = excluded.last_summary,
			status = excluded.status,
			error_message = NULL,
			updated_at = CURRENT_TIMESTAMP
	`, service, summary, string(RunIdle))
	if err != nil {
		return fmt.Errorf("failed to mark run complete: %w", err)
	}
	return nil
}

func setRunStatus(ctx context.Context, db *sql.DB, service string, status RunStatus, message sql.NullString) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (service, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, service, string(status), message)
	if err != nil {
		return fmt.Errorf("failed to set run status: %w", err)
	}
	return nil
}

func scanRunState(row rowScanner) (*RunState, error) {
	var (
		state   RunState
		status  string
		lastRun sql.NullTime
	)
	if err := row.Scan(&state.Service, &status, &lastRun, &state.LastSummary, &state.ErrorMessage, &state.UpdatedAt); err != nil {
		return nil, err
	}
	state.Status = RunStatus(status)
	if lastRun.Valid {
		state.LastRunAt = &lastRun.Time
	}
	return &state, nil
}
