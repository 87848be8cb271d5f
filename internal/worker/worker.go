package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/mq"
	"github.com/shaiso/Stepflow/internal/runner"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultPrefetch     = 5
)

// RunExecutor выполняет PENDING run. Реализуется runner.Service.
type RunExecutor interface {
	ExecuteRun(ctx context.Context, runID uuid.UUID) error
}

// PendingLister — источник PENDING runs для polling.
type PendingLister interface {
	ListPending(ctx context.Context, limit int) ([]domain.Run, error)
}

// Worker выполняет runs, поставленные в очередь.
//
// Worker:
//   - Получает run.pending из очереди RabbitMQ (event-driven)
//   - Периодически проверяет PENDING runs в БД (polling fallback)
//   - Выполняет workflow через runner.Service.ExecuteRun
//
// Несколько экземпляров могут работать одновременно: run забирается
// атомарно (PENDING → RUNNING), второй воркер его пропустит.
type Worker struct {
	executor RunExecutor
	pending  PendingLister
	conn     *mq.Connection

	pollInterval time.Duration
	batchSize    int
	prefetch     int

	logger     *slog.Logger
	consumer   *mq.Consumer
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	stoppedMu sync.RWMutex
	stopped   bool
}

// Config — конфигурация Worker.
type Config struct {
	Executor RunExecutor
	Pending  PendingLister

	// Conn — соединение с RabbitMQ. Если nil, работает только polling.
	Conn *mq.Connection

	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество runs за один poll (default: 50)
	Prefetch     int           // prefetch consumer'а (default: 5)

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	w := &Worker{
		executor:     cfg.Executor,
		pending:      cfg.Pending,
		conn:         cfg.Conn,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		prefetch:     cfg.Prefetch,
		logger:       cfg.Logger,
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.prefetch <= 0 {
		w.prefetch = defaultPrefetch
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Start запускает consumer (если есть соединение) и polling.
func (w *Worker) Start(ctx context.Context) error {
	if w.IsStopped() {
		return ErrWorkerStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"amqp", w.conn != nil,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsPending),
			Handler:  w.handleRunPending,
			Prefetch: w.prefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения текущих runs.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// handleRunPending обрабатывает событие run.pending.
func (w *Worker) handleRunPending(ctx context.Context, delivery *mq.Delivery) error {
	event := delivery.Event
	if event.Type != mq.EventRunPending {
		return mq.Permanent(fmt.Errorf("unexpected event type %q", event.Type))
	}
	if event.RunID == uuid.Nil {
		return mq.Permanent(errors.New("run.pending without run_id"))
	}

	return w.process(ctx, event.RunID)
}

// process выполняет run. Ожидаемые ситуации (run уже взят или удалён)
// не считаются ошибкой.
func (w *Worker) process(ctx context.Context, runID uuid.UUID) error {
	err := w.executor.ExecuteRun(ctx, runID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, runner.ErrRunNotPending), errors.Is(err, runner.ErrRunNotFound):
		w.logger.Debug("run not processed", "run_id", runID, "reason", err)
		return nil
	default:
		w.logger.Error("failed to execute run", "run_id", runID, "error", err)
		return err
	}
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs, созданные пока были выключены)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	runs, err := w.pending.ListPending(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("failed to list pending runs", "error", err)
		}
		return
	}
	if len(runs) == 0 {
		return
	}

	w.logger.Debug("poll found pending runs", "count", len(runs))

	for i := range runs {
		if ctx.Err() != nil {
			return
		}
		_ = w.process(ctx, runs[i].ID)
	}
}
