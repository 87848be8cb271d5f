package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/steps"
	"github.com/shaiso/Stepflow/internal/telemetry"
)

const (
	defaultStepTimeout = 2 * time.Minute

	// configTimeoutSec — ключ конфигурации шага с собственным таймаутом.
	configTimeoutSec = "timeout_sec"
)

// Result — итог выполнения последовательности шагов.
type Result struct {
	// Context — контекст после последнего успешного шага.
	Context domain.Context `json:"context"`

	// StepsRun — журнал: по записи на каждый запущенный шаг.
	StepsRun []domain.StepResult `json:"steps_run"`
}

// Failed возвращает true, если выполнение остановилось на ошибке.
func (r *Result) Failed() bool {
	n := len(r.StepsRun)
	return n > 0 && r.StepsRun[n-1].Status == domain.StepStatusError
}

// Runner выполняет шаги строго по порядку и останавливается на первой ошибке.
//
// Каждый шаг получает контекст предыдущего. Перед записью результатов шага
// контекст копируется, поэтому ни один шаг не видит изменений чужой копии.
// Runner не хранит состояния между вызовами Run и безопасен для
// конкурентного использования.
type Runner struct {
	registry       *steps.Registry
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// Options — параметры Runner.
type Options struct {
	// DefaultTimeout — таймаут шага, если в конфиге нет timeout_sec (default: 2m).
	DefaultTimeout time.Duration

	// Logger (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт Runner поверх реестра шагов.
func New(registry *steps.Registry, opts Options) *Runner {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = defaultStepTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		registry:       registry,
		defaultTimeout: opts.DefaultTimeout,
		logger:         opts.Logger,
	}
}

// Registry возвращает реестр шагов.
func (r *Runner) Registry() *steps.Registry {
	return r.registry
}

// Run выполняет шаги над начальным контекстом.
//
// Шаги сортируются по Order. При ошибке шага в журнал пишется запись со
// статусом error, следующие шаги не запускаются, а возвращается контекст,
// существовавший до упавшего шага.
func (r *Runner) Run(ctx context.Context, stepList []domain.Step, initial domain.Context) *Result {
	current := domain.NewContext(initial)
	result := &Result{
		Context:  current,
		StepsRun: make([]domain.StepResult, 0, len(stepList)),
	}

	for _, step := range domain.SortSteps(stepList) {
		logger := telemetry.WithStep(r.logger, step.ID, string(step.Type))

		outputs, err := r.executeStep(ctx, step, current)
		if err != nil {
			logger.Warn("step failed", "error", err)
			result.StepsRun = append(result.StepsRun, domain.StepResult{
				ID:     step.ID,
				Type:   step.Type,
				Status: domain.StepStatusError,
				Error:  err.Error(),
			})
			break
		}

		next := current.Clone()
		for k, v := range outputs {
			next[k] = v
		}
		current = next
		result.Context = current

		logger.Debug("step succeeded")
		result.StepsRun = append(result.StepsRun, domain.StepResult{
			ID:     step.ID,
			Type:   step.Type,
			Status: domain.StepStatusSuccess,
		})
	}

	return result
}

// executeStep выполняет один шаг с таймаутом и учётом метрик.
func (r *Runner) executeStep(ctx context.Context, step domain.Step, current domain.Context) (outputs map[string]any, err error) {
	start := time.Now()
	defer func() {
		status := domain.StepStatusSuccess
		if err != nil {
			status = domain.StepStatusError
		}
		telemetry.StepsTotal.WithLabelValues(string(step.Type), string(status)).Inc()
		telemetry.StepDuration.WithLabelValues(string(step.Type)).Observe(time.Since(start).Seconds())
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Join(steps.ErrStepCancelled, ctxErr)
	}

	impl, err := r.registry.Get(step.Type)
	if err != nil {
		return nil, fmt.Errorf("unknown step type: %w", err)
	}

	timeout := r.defaultTimeout
	if sec := steps.GetConfigInt(step.Config, configTimeoutSec); sec > 0 {
		timeout = time.Duration(sec) * time.Second
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			outputs = nil
			err = fmt.Errorf("step panicked: %v", rec)
		}
	}()

	resp, err := impl.Execute(stepCtx, steps.NewRequest(step.ID, step.Config, current, timeout))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return resp.Outputs, nil
}
