package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/llm"
	"github.com/shaiso/Stepflow/internal/repo"
	"github.com/shaiso/Stepflow/internal/runner"
)

// WorkflowStore — хранилище workflow.
type WorkflowStore interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	List(ctx context.Context, limit, offset int) ([]domain.Workflow, int, error)
	Update(ctx context.Context, wf *domain.Workflow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RunStore — чтение runs.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, int, error)
}

// ScheduleStore — хранилище schedules.
type ScheduleStore interface {
	Create(ctx context.Context, s *domain.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	List(ctx context.Context, filter repo.ScheduleFilter) ([]domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// WorkflowRunner — запуск workflow (синхронный и через очередь).
type WorkflowRunner interface {
	RunWorkflow(ctx context.Context, workflowID uuid.UUID, initial domain.Context) (*runner.WorkflowRunResult, error)
	Enqueue(ctx context.Context, workflowID uuid.UUID, initial domain.Context, trigger domain.Trigger, idempotencyKey string) (*domain.Run, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	workflows  WorkflowStore
	runs       RunStore
	schedules  ScheduleStore
	runner     WorkflowRunner
	completer  llm.Completer
	httpClient *http.Client
	stepTypes  []domain.StepType
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Workflows WorkflowStore
	Runs      RunStore
	Schedules ScheduleStore
	Runner    WorkflowRunner

	// Completer используется /test-llm и /summarize-url.
	Completer llm.Completer

	// HTTPClient для /summarize-url. По умолчанию http.DefaultClient.
	HTTPClient *http.Client

	// StepTypes — типы шагов, зарегистрированные в исполнителе.
	// По умолчанию domain.StepTypes.
	StepTypes []domain.StepType

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	stepTypes := cfg.StepTypes
	if len(stepTypes) == 0 {
		stepTypes = domain.StepTypes
	}

	return &Handler{
		workflows:  cfg.Workflows,
		runs:       cfg.Runs,
		schedules:  cfg.Schedules,
		runner:     cfg.Runner,
		completer:  cfg.Completer,
		httpClient: httpClient,
		stepTypes:  stepTypes,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
		now:        time.Now,
	}
}
