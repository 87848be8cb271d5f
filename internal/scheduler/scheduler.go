package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/runner"
	"github.com/shaiso/Stepflow/internal/telemetry"
)

// ScheduleStore — хранилище расписаний.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) error
}

// Enqueuer ставит run в очередь. Реализуется runner.Service.
type Enqueuer interface {
	Enqueue(ctx context.Context, workflowID uuid.UUID, initial domain.Context, trigger domain.Trigger, idempotencyKey string) (*domain.Run, error)
}

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	schedules ScheduleStore
	enqueuer  Enqueuer
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Enqueuer  Enqueuer
	Logger    *slog.Logger
	BatchSize int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		enqueuer:  cfg.Enqueuer,
		logger:    logger,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Tick выполняет один тик планировщика.
//
// Для каждого due schedule (enabled, next_due_at <= now) ставит в очередь
// run с ключом идемпотентности "{schedule_id}_{next_due_at_unix}" и
// сдвигает next_due_at. Ошибки одного schedule не блокируют остальные.
// Возвращает количество поставленных runs.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()

	schedules, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due schedules: %w", err)
	}
	if len(schedules) == 0 {
		return 0, nil
	}

	var enqueued int
	for i := range schedules {
		sched := &schedules[i]

		ok, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}
		if ok {
			enqueued++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"runs_enqueued", enqueued,
	)

	return enqueued, nil
}

// processSchedule ставит run для одного schedule и сдвигает next_due_at.
// Возвращает true, если run поставлен в очередь.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		// Некорректное расписание не должно срабатывать на каждом тике.
		sched.Enabled = false
		sched.UpdatedAt = now
		if uErr := s.schedules.Update(ctx, sched); uErr != nil {
			return false, fmt.Errorf("disable schedule: %w", uErr)
		}
		return false, fmt.Errorf("schedule disabled: %w", err)
	}

	run, err := s.enqueuer.Enqueue(ctx, sched.WorkflowID, sched.Context, domain.TriggerSchedule, sched.IdempotencyKey())
	if err != nil {
		if errors.Is(err, runner.ErrWorkflowNotFound) {
			s.logger.Warn("workflow not found for schedule, disabling",
				"schedule_id", sched.ID,
				"workflow_id", sched.WorkflowID,
			)
			sched.Enabled = false
			sched.UpdatedAt = now
			return false, s.schedules.Update(ctx, sched)
		}
		return false, fmt.Errorf("enqueue run: %w", err)
	}

	telemetry.ScheduledRunsTotal.Inc()
	s.logger.Info("enqueued run from schedule",
		"run_id", run.ID,
		"schedule_id", sched.ID,
		"workflow_id", sched.WorkflowID,
		"next_due_at", nextDue,
	)

	sched.RecordRun(run.ID, nextDue)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return true, fmt.Errorf("update schedule: %w", err)
	}

	return true, nil
}

// InitNextDue заполняет NextDueAt нового или изменённого расписания.
func InitNextDue(sched *domain.Schedule, now time.Time) error {
	next, err := CalculateNextDue(sched, now)
	if err != nil {
		return err
	}
	sched.NextDueAt = &next
	return nil
}
