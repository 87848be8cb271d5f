package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/mq"
	"github.com/shaiso/Stepflow/internal/repo"
	"github.com/shaiso/Stepflow/internal/telemetry"
)

// Ошибки сервиса запусков.
var (
	// ErrWorkflowNotFound — workflow с таким ID не существует.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrRunNotFound — run с таким ID не существует.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotPending — run уже взят в работу или завершён.
	ErrRunNotPending = errors.New("run is not in PENDING status")
)

// WorkflowStore — чтение workflow.
type WorkflowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
}

// RunStore — хранилище runs.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Run, error)
	Update(ctx context.Context, run *domain.Run) error

	// Claim атомарно переводит run из PENDING в RUNNING.
	// Возвращает false, если run уже не в PENDING.
	Claim(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error)
}

// RunPublisher — уведомление воркеров о новых runs.
type RunPublisher interface {
	PublishRunPending(ctx context.Context, event mq.RunEvent) error
}

// WorkflowRunResult — ответ синхронного запуска.
type WorkflowRunResult struct {
	WorkflowID uuid.UUID           `json:"workflow_id"`
	RunID      uuid.UUID           `json:"run_id"`
	Status     domain.RunStatus    `json:"status"`
	Context    domain.Context      `json:"context"`
	StepsRun   []domain.StepResult `json:"steps_run"`
}

// Service связывает Runner с хранилищами и очередью.
type Service struct {
	runner    *Runner
	workflows WorkflowStore
	runs      RunStore
	publisher RunPublisher
	logger    *slog.Logger
}

// persistTimeout ограничивает запись итогового состояния run.
const persistTimeout = 10 * time.Second

// ServiceConfig — зависимости Service.
type ServiceConfig struct {
	// Runner не нужен процессу, который только ставит runs в очередь (scheduler).
	Runner    *Runner
	Workflows WorkflowStore

	// Runs — хранилище runs. Если nil, синхронные запуски не сохраняются,
	// а Enqueue/ExecuteRun недоступны.
	Runs RunStore

	// Publisher (опционально). Без него воркеры находят runs через polling.
	Publisher RunPublisher

	Logger *slog.Logger
}

// NewService создаёт Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:    cfg.Runner,
		workflows: cfg.Workflows,
		runs:      cfg.Runs,
		publisher: cfg.Publisher,
		logger:    logger,
	}
}

// Runner возвращает исполнитель шагов.
func (s *Service) Runner() *Runner {
	return s.runner
}

// loadWorkflow загружает workflow, приводя «не найдено» к ErrWorkflowNotFound.
func (s *Service) loadWorkflow(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	wf, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
		}
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return wf, nil
}

// RunWorkflow синхронно выполняет workflow над начальным контекстом.
//
// Run сохраняется в хранилище по возможности: ошибка записи логируется,
// но не влияет на результат выполнения.
func (s *Service) RunWorkflow(ctx context.Context, workflowID uuid.UUID, initial domain.Context) (*WorkflowRunResult, error) {
	wf, err := s.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	run := &domain.Run{
		ID:         uuid.New(),
		WorkflowID: wf.ID,
		Trigger:    domain.TriggerManual,
		Inputs:     domain.NewContext(initial),
		CreatedAt:  time.Now(),
	}
	run.MarkRunning()

	logger := telemetry.WithRunID(telemetry.WithWorkflowID(s.logger, wf.ID.String()), run.ID.String())
	logger.Info("workflow run started", "steps", len(wf.Steps))

	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			logger.Warn("failed to persist run", "error", err)
		}
	}

	result := s.runner.Run(ctx, wf.Steps, run.Inputs)
	s.finish(ctx, logger, run, result)

	return &WorkflowRunResult{
		WorkflowID: wf.ID,
		RunID:      run.ID,
		Status:     run.Status,
		Context:    result.Context,
		StepsRun:   result.StepsRun,
	}, nil
}

// Enqueue создаёт PENDING run для асинхронного выполнения воркером.
//
// Если idempotencyKey не пуст и run с таким ключом уже есть,
// возвращается существующий run.
func (s *Service) Enqueue(ctx context.Context, workflowID uuid.UUID, initial domain.Context, trigger domain.Trigger, idempotencyKey string) (*domain.Run, error) {
	if s.runs == nil {
		return nil, errors.New("run store is not configured")
	}

	if idempotencyKey != "" {
		existing, err := s.runs.GetByIdempotencyKey(ctx, idempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("check idempotency key: %w", err)
		}
	}

	if _, err := s.loadWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	if trigger == "" {
		trigger = domain.TriggerManual
	}

	run := &domain.Run{
		ID:             uuid.New(),
		WorkflowID:     workflowID,
		Status:         domain.RunStatusPending,
		Trigger:        trigger,
		Inputs:         domain.NewContext(initial),
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
	}

	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	s.publish(ctx, run)
	return run, nil
}

// publish уведомляет воркеров. Ошибка не фатальна: run подхватит polling.
func (s *Service) publish(ctx context.Context, run *domain.Run) {
	if s.publisher == nil {
		return
	}
	event := mq.RunEvent{
		RunID:      run.ID,
		WorkflowID: run.WorkflowID,
		Trigger:    string(run.Trigger),
	}
	if err := s.publisher.PublishRunPending(ctx, event); err != nil {
		s.logger.Warn("failed to publish run.pending",
			"run_id", run.ID,
			"error", err,
		)
	}
}

// ExecuteRun выполняет PENDING run. Используется воркером.
func (s *Service) ExecuteRun(ctx context.Context, runID uuid.UUID) error {
	if s.runs == nil {
		return errors.New("run store is not configured")
	}

	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}
	if run.Status != domain.RunStatusPending {
		return ErrRunNotPending
	}

	logger := telemetry.WithRunID(telemetry.WithWorkflowID(s.logger, run.WorkflowID.String()), run.ID.String())

	run.MarkRunning()
	claimed, err := s.runs.Claim(ctx, run.ID, *run.StartedAt)
	if err != nil {
		return fmt.Errorf("claim run: %w", err)
	}
	if !claimed {
		return ErrRunNotPending
	}

	wf, err := s.loadWorkflow(ctx, run.WorkflowID)
	if err != nil {
		run.MarkFailed(err.Error())
		telemetry.WorkflowRunsTotal.WithLabelValues(string(run.Status)).Inc()
		if uErr := s.persist(ctx, run); uErr != nil {
			return fmt.Errorf("update run: %w", uErr)
		}
		logger.Warn("run failed before start", "error", err)
		return nil
	}

	logger.Info("workflow run started", "steps", len(wf.Steps), "trigger", run.Trigger)

	result := s.runner.Run(ctx, wf.Steps, run.Inputs)
	return s.finish(ctx, logger, run, result)
}

// finish фиксирует результат run и сохраняет его.
func (s *Service) finish(ctx context.Context, logger *slog.Logger, run *domain.Run, result *Result) error {
	run.Complete(result.Context, result.StepsRun)
	telemetry.WorkflowRunsTotal.WithLabelValues(string(run.Status)).Inc()

	if run.Status == domain.RunStatusFailed {
		logger.Warn("workflow run failed",
			"steps_run", len(result.StepsRun),
			"error", run.Error,
			"duration", run.Duration(),
		)
	} else {
		logger.Info("workflow run succeeded",
			"steps_run", len(result.StepsRun),
			"duration", run.Duration(),
		)
	}

	if s.runs == nil {
		return nil
	}
	if err := s.persist(ctx, run); err != nil {
		logger.Warn("failed to persist run result", "error", err)
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// persist сохраняет итоговое состояние run. Отмена ctx (остановка воркера,
// обрыв HTTP запроса) не должна оставить run в RUNNING, поэтому запись
// идёт без отмены родителя, но с собственным таймаутом.
func (s *Service) persist(ctx context.Context, run *domain.Run) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return s.runs.Update(ctx, run)
}
