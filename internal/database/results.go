package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/review-scraper/internal/models"
)

const taskResultSchema = `
	CREATE TABLE IF NOT EXISTS task_result (
		run_id        TEXT        NOT NULL,
		task_id       TEXT        NOT NULL,
		url           TEXT        NOT NULL,
		outcome       TEXT        NOT NULL,
		product_name  TEXT        NOT NULL DEFAULT '',
		review_count  INTEGER     NOT NULL DEFAULT 0,
		output_path   TEXT,
		error_message TEXT,
		worker_id     INTEGER     NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, task_id)
	);
	CREATE INDEX IF NOT EXISTS idx_task_result_outcome ON task_result (run_id, outcome);`

// ResultRepository is the run ledger: every task result of a run, keyed by
// run id and task id.
type ResultRepository struct {
	db    *DB
	runID string
}

func NewResultRepository(db *DB, runID string) *ResultRepository {
	return &ResultRepository{db: db, runID: runID}
}

func (r *ResultRepository) RunID() string {
	return r.runID
}

// EnsureSchema creates the task_result table if it does not exist.
func (r *ResultRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, taskResultSchema); err != nil {
		return fmt.Errorf("failed to create task_result table: %w", err)
	}
	return nil
}

// Record upserts one result. Recording the same task twice keeps the latest.
func (r *ResultRepository) Record(ctx context.Context, result models.TaskResult) error {
	query := `
		INSERT INTO task_result (
			run_id, task_id, url, outcome, product_name, review_count,
			output_path, error_message, worker_id, created_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, task_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			product_name = EXCLUDED.product_name,
			review_count = EXCLUDED.review_count,
			output_path = EXCLUDED.output_path,
			error_message = EXCLUDED.error_message,
			worker_id = EXCLUDED.worker_id,
			finished_at = EXCLUDED.finished_at`

	_, err := r.db.Exec(ctx, query,
		r.runID,
		result.Task.ID,
		result.Task.URL,
		string(result.Outcome),
		result.ProductName,
		result.ReviewCount,
		nullable(result.OutputPath),
		nullable(result.Error),
		result.WorkerID,
		result.Task.CreatedAt,
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record task result: %w", err)
	}
	return nil
}

// List returns the results of runID in completion order.
func (r *ResultRepository) List(ctx context.Context, runID string) ([]models.TaskResult, error) {
	query := `
		SELECT task_id, url, outcome, product_name, review_count,
			output_path, error_message, worker_id, created_at, finished_at
		FROM task_result
		WHERE run_id = $1
		ORDER BY finished_at, task_id`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task results: %w", err)
	}

	results, err := pgx.CollectRows(rows, scanResult)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task results: %w", err)
	}
	return results, nil
}

// CountByOutcome returns how many results of runID ended in each outcome.
func (r *ResultRepository) CountByOutcome(ctx context.Context, runID string) (map[models.Outcome]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT outcome, COUNT(*) FROM task_result WHERE run_id = $1 GROUP BY outcome`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count task results: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[models.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

func scanResult(row pgx.CollectableRow) (models.TaskResult, error) {
	var (
		res     models.TaskResult
		outcome string
		output  *string
		errMsg  *string
	)
	err := row.Scan(
		&res.Task.ID,
		&res.Task.URL,
		&outcome,
		&res.ProductName,
		&res.ReviewCount,
		&output,
		&errMsg,
		&res.WorkerID,
		&res.Task.CreatedAt,
		&res.FinishedAt,
	)
	if err != nil {
		return res, err
	}
	res.Outcome = models.Outcome(outcome)
	if output != nil {
		res.OutputPath = *output
	}
	if errMsg != nil {
		res.Error = *errMsg
	}
	return res, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
