package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

// RunRepository keeps regeneration run snapshots so status survives restarts.
type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) SaveRun(ctx context.Context, run domain.RegenerationRun) error {
	fieldsJSON, err := json.Marshal(run.Fields)
	if err != nil {
		return fmt.Errorf("marshal run fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO regeneration_runs (
	id, state, fields, batch_size, total, processed, progress, batch_index, batches, failed_batches, error_message, started_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
	state = EXCLUDED.state,
	total = EXCLUDED.total,
	processed = EXCLUDED.processed,
	progress = EXCLUDED.progress,
	batch_index = EXCLUDED.batch_index,
	batches = EXCLUDED.batches,
	failed_batches = EXCLUDED.failed_batches,
	error_message = EXCLUDED.error_message,
	finished_at = EXCLUDED.finished_at
`,
		run.ID, string(run.State), fieldsJSON, run.BatchSize, run.Total, run.Processed, run.Progress,
		run.BatchIndex, run.Batches, run.FailedBatches, run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save regeneration run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id string) (domain.RegenerationRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, state, fields, batch_size, total, processed, progress, batch_index, batches, failed_batches, error_message, started_at, finished_at
FROM regeneration_runs
WHERE id = $1
`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RegenerationRun{}, domain.WrapError(domain.ErrRunNotFound, "get regeneration run", fmt.Errorf("id=%s", id))
		}
		return domain.RegenerationRun{}, fmt.Errorf("get regeneration run: %w", err)
	}
	return run, nil
}

// MarkInterrupted fails runs left running by a previous process.
func (r *RunRepository) MarkInterrupted(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
UPDATE regeneration_runs
SET state = $1, error_message = $2, finished_at = now()
WHERE state = $3
`, string(domain.RunFailed), "interrupted by restart", string(domain.RunRunning))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs rows affected: %w", err)
	}
	return rows, nil
}

type runScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row runScanner) (domain.RegenerationRun, error) {
	var run domain.RegenerationRun
	var state string
	var fieldsRaw []byte
	var finishedAt sql.NullTime
	err := row.Scan(
		&run.ID,
		&state,
		&fieldsRaw,
		&run.BatchSize,
		&run.Total,
		&run.Processed,
		&run.Progress,
		&run.BatchIndex,
		&run.Batches,
		&run.FailedBatches,
		&run.Error,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return domain.RegenerationRun{}, err
	}
	if len(fieldsRaw) > 0 {
		if err := json.Unmarshal(fieldsRaw, &run.Fields); err != nil {
			return domain.RegenerationRun{}, fmt.Errorf("unmarshal run fields: %w", err)
		}
	}
	run.State = domain.RunState(state)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return run, nil
}
