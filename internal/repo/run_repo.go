package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Stepflow/internal/domain"
)

// RunRepo — репозиторий для работы с runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `id, workflow_id, status, trigger, inputs, context, steps_run,
		error, idempotency_key, started_at, finished_at, created_at`

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	WorkflowID *uuid.UUID
	Status     domain.RunStatus
	Limit      int
	Offset     int
}

// Create создаёт новый run.
// Повтор idempotency_key возвращает ErrAlreadyExists.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	j, err := marshalRunJSON(run)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.WorkflowID,
		run.Status,
		run.Trigger,
		j.inputs,
		j.context,
		j.stepsRun,
		nullString(run.Error),
		nullString(run.IdempotencyKey),
		run.StartedAt,
		run.FinishedAt,
		run.CreatedAt,
	)
	if err != nil {
		return mapWriteError("insert run", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает run по ключу идемпотентности.
func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE idempotency_key = $1`
	return scanRun(r.pool.QueryRow(ctx, query, key))
}

// List возвращает runs с фильтрацией, новые первыми, и общее количество.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, int, error) {
	where := `
		WHERE ($1::uuid IS NULL OR workflow_id = $1)
		  AND ($2::text IS NULL OR status = $2)
	`
	args := []any{nullUUID(filter.WorkflowID), nullString(string(filter.Status))}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM runs `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	query := `SELECT ` + runColumns + ` FROM runs ` + where + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs, err := collectRuns(rows)
	return runs, total, err
}

// Update сохраняет состояние run.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	j, err := marshalRunJSON(run)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs
		SET status = $2, context = $3, steps_run = $4, error = $5,
		    started_at = $6, finished_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		j.context,
		j.stepsRun,
		nullString(run.Error),
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim атомарно переводит run из PENDING в RUNNING.
// Возвращает false, если run уже взят другим воркером или не существует.
func (r *RunRepo) Claim(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = $2, started_at = $3
		WHERE id = $1 AND status = $4
	`, id, domain.RunStatusRunning, startedAt, domain.RunStatusPending)
	if err != nil {
		return false, fmt.Errorf("claim run: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListPending возвращает самые старые runs в статусе PENDING.
func (r *RunRepo) ListPending(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// runJSON — JSONB-колонки run.
type runJSON struct {
	inputs   []byte
	context  []byte
	stepsRun []byte
}

func marshalRunJSON(run *domain.Run) (runJSON, error) {
	var j runJSON
	var err error

	inputs := run.Inputs
	if inputs == nil {
		inputs = domain.Context{}
	}
	if j.inputs, err = json.Marshal(inputs); err != nil {
		return j, fmt.Errorf("marshal inputs: %w", err)
	}

	if run.Context != nil {
		if j.context, err = json.Marshal(run.Context); err != nil {
			return j, fmt.Errorf("marshal context: %w", err)
		}
	}

	stepsRun := run.StepsRun
	if stepsRun == nil {
		stepsRun = []domain.StepResult{}
	}
	if j.stepsRun, err = json.Marshal(stepsRun); err != nil {
		return j, fmt.Errorf("marshal steps_run: %w", err)
	}

	return j, nil
}

func collectRuns(rows pgx.Rows) ([]domain.Run, error) {
	runs := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanRun сканирует одну строку в Run.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var inputsJSON, contextJSON, stepsRunJSON []byte
	var runError, idempotencyKey *string

	err := row.Scan(
		&run.ID,
		&run.WorkflowID,
		&run.Status,
		&run.Trigger,
		&inputsJSON,
		&contextJSON,
		&stepsRunJSON,
		&runError,
		&idempotencyKey,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if err := unmarshalIfPresent(inputsJSON, &run.Inputs, "inputs"); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(contextJSON, &run.Context, "context"); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(stepsRunJSON, &run.StepsRun, "steps_run"); err != nil {
		return nil, err
	}

	run.Error = derefString(runError)
	run.IdempotencyKey = derefString(idempotencyKey)

	return &run, nil
}

func unmarshalIfPresent(data []byte, dst any, column string) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", column, err)
	}
	return nil
}
