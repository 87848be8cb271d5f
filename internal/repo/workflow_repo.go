package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Stepflow/internal/domain"
)

// WorkflowRepo — репозиторий для работы с workflows.
// Шаги хранятся одним JSONB-массивом.
type WorkflowRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepo создаёт новый WorkflowRepo.
func NewWorkflowRepo(pool *pgxpool.Pool) *WorkflowRepo {
	return &WorkflowRepo{pool: pool}
}

const workflowColumns = `id, name, description, trigger, steps, created_at, updated_at`

// Create создаёт новый workflow.
func (r *WorkflowRepo) Create(ctx context.Context, wf *domain.Workflow) error {
	stepsJSON, err := marshalSteps(wf.Steps)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		wf.ID,
		wf.Name,
		wf.Description,
		wf.Trigger,
		stepsJSON,
		wf.CreatedAt,
		wf.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("insert workflow", err)
	}
	return nil
}

// GetByID возвращает workflow по ID.
func (r *WorkflowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`
	return scanWorkflow(r.pool.QueryRow(ctx, query, id))
}

// List возвращает workflows, новые первыми, и общее количество.
func (r *WorkflowRepo) List(ctx context.Context, limit, offset int) ([]domain.Workflow, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM workflows`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count workflows: %w", err)
	}

	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	workflows := make([]domain.Workflow, 0)
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, 0, err
		}
		workflows = append(workflows, *wf)
	}
	return workflows, total, rows.Err()
}

// Update обновляет workflow целиком.
func (r *WorkflowRepo) Update(ctx context.Context, wf *domain.Workflow) error {
	stepsJSON, err := marshalSteps(wf.Steps)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflows
		SET name = $2, description = $3, trigger = $4, steps = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		wf.ID,
		wf.Name,
		wf.Description,
		wf.Trigger,
		stepsJSON,
		wf.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("update workflow", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет workflow вместе с его runs и schedules.
func (r *WorkflowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalSteps(steps []domain.Step) ([]byte, error) {
	if steps == nil {
		steps = []domain.Step{}
	}
	b, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}
	return b, nil
}

// scanWorkflow сканирует строку (QueryRow или Rows) в Workflow.
func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	var wf domain.Workflow
	var stepsJSON []byte

	err := row.Scan(
		&wf.ID,
		&wf.Name,
		&wf.Description,
		&wf.Trigger,
		&stepsJSON,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan workflow: %w", err)
	}

	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &wf.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	if wf.Steps == nil {
		wf.Steps = []domain.Step{}
	}

	return &wf, nil
}
