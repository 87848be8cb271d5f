package steps

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/llm"
)

// Registry — реестр типов шагов.
//
// Позволяет регистрировать и получать реализации Step по типу.
// Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	steps map[domain.StepType]Step
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[domain.StepType]Step),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными шагами.
// httpClient может быть nil.
func DefaultRegistry(completer llm.Completer, httpClient *http.Client) *Registry {
	r := NewRegistry()

	r.Register(NewFetchURLStep(httpClient))
	r.Register(NewSummarizeStep(completer))
	r.Register(NewGeneralPromptStep(completer))
	r.Register(NewTransformTextStep())
	r.Register(NewEchoStep())

	return r
}

// Register регистрирует шаг в реестре.
// Если шаг с таким типом уже существует, он будет перезаписан.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.Type()] = step
}

// Get возвращает шаг по типу.
// Возвращает ErrStepNotFound, если шаг не найден.
func (r *Registry) Get(stepType domain.StepType) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[stepType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepType)
	}

	return step, nil
}

// Has проверяет, зарегистрирован ли шаг.
func (r *Registry) Has(stepType domain.StepType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.steps[stepType]
	return exists
}

// Types возвращает список всех зарегистрированных типов шагов.
func (r *Registry) Types() []domain.StepType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.StepType, 0, len(r.steps))
	for t := range r.steps {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Count возвращает количество зарегистрированных шагов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// Unregister удаляет шаг из реестра.
func (r *Registry) Unregister(stepType domain.StepType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.steps, stepType)
}
