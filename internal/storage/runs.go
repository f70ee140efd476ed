package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/companion-radar/internal/core/domain"
)

// CreateIngestRun opens a new RUNNING audit row and returns its id.
func (db *DB) CreateIngestRun(ctx context.Context) (string, error) {
	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO ingest_runs (status) VALUES ('RUNNING') RETURNING id
	`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create ingest run: %w", err)
	}

	return fromUUID(id), nil
}

// FinishIngestRun closes an audit row with its final counters and errors.
func (db *DB) FinishIngestRun(ctx context.Context, run *domain.IngestRun) error {
	errJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("marshal run errors: %w", err)
	}

	if run.Errors == nil {
		errJSON = []byte("[]")
	}

	if _, err := db.Pool.Exec(ctx, `
		UPDATE ingest_runs
		SET finished_at = now(), status = $2,
		    signals_fetched = $3, signals_accepted = $4, signals_rejected = $5,
		    errors = $6
		WHERE id = $1
	`, toUUID(run.ID), string(run.Status),
		run.SignalsFetched, run.SignalsAccepted, run.SignalsRejected, errJSON,
	); err != nil {
		return fmt.Errorf("finish ingest run: %w", err)
	}

	return nil
}

// RecentIngestRuns lists the newest audit rows, newest first.
func (db *DB) RecentIngestRuns(ctx context.Context, limit int) ([]domain.IngestRun, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, started_at, finished_at, status,
		       signals_fetched, signals_accepted, signals_rejected, errors
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.IngestRun

	for rows.Next() {
		var (
			run        domain.IngestRun
			id         pgtype.UUID
			finishedAt pgtype.Timestamptz
			errJSON    []byte
		)

		if err := rows.Scan(&id, &run.StartedAt, &finishedAt, &run.Status,
			&run.SignalsFetched, &run.SignalsAccepted, &run.SignalsRejected, &errJSON); err != nil {
			return nil, fmt.Errorf("scan ingest run: %w", err)
		}

		run.ID = fromUUID(id)
		run.FinishedAt = fromTimestamptz(finishedAt)

		if len(errJSON) > 0 {
			_ = json.Unmarshal(errJSON, &run.Errors)
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}
