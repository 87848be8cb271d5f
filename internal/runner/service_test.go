package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/mq"
	"github.com/shaiso/Stepflow/internal/repo"
	"github.com/shaiso/Stepflow/internal/steps"
	"github.com/shaiso/Stepflow/internal/telemetry"
)

type memWorkflows struct {
	items map[uuid.UUID]*domain.Workflow
}

func (m *memWorkflows) GetByID(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	wf, ok := m.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return wf, nil
}

type memRuns struct {
	mu      sync.Mutex
	items   map[uuid.UUID]domain.Run
	updates int
}

func newMemRuns() *memRuns {
	return &memRuns{items: make(map[uuid.UUID]domain.Run)}
}

func (m *memRuns) Create(ctx context.Context, run *domain.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[run.ID] = *run
	return nil
}

func (m *memRuns) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &run, nil
}

func (m *memRuns) GetByIdempotencyKey(_ context.Context, key string) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.items {
		if run.IdempotencyKey == key {
			return &run, nil
		}
	}
	return nil, repo.ErrNotFound
}

// Update, как и настоящая БД, не пишет по отменённому контексту.
func (m *memRuns) Update(ctx context.Context, run *domain.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[run.ID] = *run
	m.updates++
	return nil
}

func (m *memRuns) Claim(_ context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.items[id]
	if !ok || run.Status != domain.RunStatusPending {
		return false, nil
	}
	run.Status = domain.RunStatusRunning
	run.StartedAt = &startedAt
	m.items[id] = run
	return true, nil
}

type memPublisher struct {
	published []mq.RunEvent
	err       error
}

func (p *memPublisher) PublishRunPending(_ context.Context, event mq.RunEvent) error {
	p.published = append(p.published, event)
	return p.err
}

func newTestService(wfs ...*domain.Workflow) (*Service, *memRuns, *memPublisher) {
	store := &memWorkflows{items: make(map[uuid.UUID]*domain.Workflow)}
	for _, wf := range wfs {
		store.items[wf.ID] = wf
	}
	runs := newMemRuns()
	pub := &memPublisher{}

	svc := NewService(ServiceConfig{
		Runner:    newTestRunner(),
		Workflows: store,
		Runs:      runs,
		Publisher: pub,
		Logger:    telemetry.NopLogger(),
	})
	return svc, runs, pub
}

func echoWorkflow() *domain.Workflow {
	return &domain.Workflow{
		ID:   uuid.New(),
		Name: "echo",
		Steps: []domain.Step{
			{ID: "s1", Type: domain.StepTypeEcho, Order: 1, Config: map[string]any{"message": "hello"}},
			{ID: "s2", Type: domain.StepTypeTransformText, Order: 2, Config: map[string]any{"inputField": "echo"}},
		},
	}
}

func TestService_RunWorkflow(t *testing.T) {
	wf := echoWorkflow()
	svc, runs, _ := newTestService(wf)

	res, err := svc.RunWorkflow(context.Background(), wf.ID, domain.Context{"in": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.WorkflowID != wf.ID {
		t.Errorf("expected workflow id %s, got %s", wf.ID, res.WorkflowID)
	}
	if res.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", res.Status)
	}
	if res.Context["echo"] != "HELLO" || res.Context["in"] != "x" {
		t.Errorf("unexpected context %v", res.Context)
	}

	stored, err := runs.GetByID(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("run should be persisted: %v", err)
	}
	if stored.Status != domain.RunStatusSucceeded || len(stored.StepsRun) != 2 {
		t.Errorf("unexpected stored run %+v", stored)
	}
	if stored.Inputs["in"] != "x" || stored.Inputs["echo"] != nil {
		t.Errorf("inputs should hold the initial context, got %v", stored.Inputs)
	}
}

func TestService_RunWorkflow_Failure(t *testing.T) {
	wf := &domain.Workflow{
		ID:   uuid.New(),
		Name: "bad",
		Steps: []domain.Step{
			{ID: "t", Type: domain.StepTypeTransformText, Order: 1},
		},
	}
	svc, runs, _ := newTestService(wf)

	res, err := svc.RunWorkflow(context.Background(), wf.ID, nil)
	if err != nil {
		t.Fatalf("step failure must not be a service error: %v", err)
	}
	if res.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", res.Status)
	}

	stored, _ := runs.GetByID(context.Background(), res.RunID)
	if stored.Error == "" {
		t.Error("stored run should carry step error")
	}
}

func TestService_RunWorkflow_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.RunWorkflow(context.Background(), uuid.New(), nil)
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestService_RunWorkflow_WithoutRunStore(t *testing.T) {
	wf := echoWorkflow()
	svc := NewService(ServiceConfig{
		Runner:    newTestRunner(),
		Workflows: &memWorkflows{items: map[uuid.UUID]*domain.Workflow{wf.ID: wf}},
		Logger:    telemetry.NopLogger(),
	})

	res, err := svc.RunWorkflow(context.Background(), wf.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Context["echo"] != "HELLO" {
		t.Errorf("unexpected context %v", res.Context)
	}
}

func TestService_EnqueueAndExecute(t *testing.T) {
	wf := echoWorkflow()
	svc, runs, pub := newTestService(wf)
	ctx := context.Background()

	run, err := svc.Enqueue(ctx, wf.ID, domain.Context{"a": "b"}, "", "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if run.Status != domain.RunStatusPending || run.Trigger != domain.TriggerManual {
		t.Errorf("unexpected run %+v", run)
	}
	if len(pub.published) != 1 || pub.published[0].RunID != run.ID {
		t.Errorf("expected run.pending to be published, got %+v", pub.published)
	}
	if pub.published[0].Trigger != string(domain.TriggerManual) {
		t.Errorf("expected manual trigger in event, got %q", pub.published[0].Trigger)
	}

	if err := svc.ExecuteRun(ctx, run.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	stored, _ := runs.GetByID(ctx, run.ID)
	if stored.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", stored.Status)
	}
	if stored.Context["echo"] != "HELLO" || stored.Context["a"] != "b" {
		t.Errorf("unexpected context %v", stored.Context)
	}

	// Повторное выполнение не допускается
	if err := svc.ExecuteRun(ctx, run.ID); !errors.Is(err, ErrRunNotPending) {
		t.Errorf("expected ErrRunNotPending, got %v", err)
	}
}

func TestService_Enqueue_Idempotent(t *testing.T) {
	wf := echoWorkflow()
	svc, runs, pub := newTestService(wf)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, wf.ID, nil, domain.TriggerSchedule, "sched_1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	second, err := svc.Enqueue(ctx, wf.ID, nil, domain.TriggerSchedule, "sched_1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if first.ID != second.ID {
		t.Error("same idempotency key should return the same run")
	}
	if len(runs.items) != 1 || len(pub.published) != 1 {
		t.Errorf("expected single run and publish, got %d runs, %d publishes", len(runs.items), len(pub.published))
	}
}

func TestService_Enqueue_PublishErrorIgnored(t *testing.T) {
	wf := echoWorkflow()
	svc, _, pub := newTestService(wf)
	pub.err = errors.New("broker down")

	if _, err := svc.Enqueue(context.Background(), wf.ID, nil, "", ""); err != nil {
		t.Errorf("publish error should not fail enqueue: %v", err)
	}
}

func TestService_Enqueue_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Enqueue(context.Background(), uuid.New(), nil, "", "")
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestService_ExecuteRun_WorkflowDeleted(t *testing.T) {
	svc, runs, _ := newTestService()
	ctx := context.Background()

	run := &domain.Run{ID: uuid.New(), WorkflowID: uuid.New(), Status: domain.RunStatusPending}
	runs.Create(ctx, run)

	if err := svc.ExecuteRun(ctx, run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := runs.GetByID(ctx, run.ID)
	if stored.Status != domain.RunStatusFailed || stored.Error == "" {
		t.Errorf("expected FAILED with error, got %+v", stored)
	}
}

func TestService_ExecuteRun_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	if err := svc.ExecuteRun(context.Background(), uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

// newBlockingService — сервис с шагом SLOW, который ждёт отмены контекста.
func newBlockingService(t *testing.T) (*Service, *memRuns, *domain.Workflow) {
	t.Helper()

	slow := &funcStep{typ: "SLOW", fn: func(ctx context.Context, _ *steps.Request) (*steps.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	wf := &domain.Workflow{
		ID:   uuid.New(),
		Name: "slow",
		Steps: []domain.Step{
			{ID: "echo", Type: domain.StepTypeEcho, Order: 1},
			{ID: "slow", Type: "SLOW", Order: 2},
		},
	}

	runs := newMemRuns()
	svc := NewService(ServiceConfig{
		Runner:    newTestRunner(slow),
		Workflows: &memWorkflows{items: map[uuid.UUID]*domain.Workflow{wf.ID: wf}},
		Runs:      runs,
		Logger:    telemetry.NopLogger(),
	})
	return svc, runs, wf
}

func TestService_ExecuteRun_CancelledContextStoresFailure(t *testing.T) {
	svc, runs, wf := newBlockingService(t)

	run, err := svc.Enqueue(context.Background(), wf.ID, nil, "", "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	if err := svc.ExecuteRun(ctx, run.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	stored, _ := runs.GetByID(context.Background(), run.ID)
	if stored.Status != domain.RunStatusFailed {
		t.Fatalf("expected FAILED after shutdown, got %s", stored.Status)
	}
	if stored.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
	if len(stored.StepsRun) != 2 || stored.StepsRun[1].Status != domain.StepStatusError {
		t.Errorf("expected slow step logged as error, got %+v", stored.StepsRun)
	}
}

func TestService_RunWorkflow_CancelledContextStoresFailure(t *testing.T) {
	svc, runs, wf := newBlockingService(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	res, err := svc.RunWorkflow(ctx, wf.ID, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED result, got %s", res.Status)
	}

	stored, err := runs.GetByID(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("run record missing: %v", err)
	}
	if stored.Status != domain.RunStatusFailed {
		t.Errorf("expected stored run FAILED, got %s", stored.Status)
	}
}

func TestService_ExecuteRun_MissingWorkflowAfterCancel(t *testing.T) {
	svc, runs, _ := newTestService()

	run := &domain.Run{ID: uuid.New(), WorkflowID: uuid.New(), Status: domain.RunStatusPending}
	_ = runs.Create(context.Background(), run)

	// workflow удалён: run должен стать FAILED даже на отменённом контексте
	ctx, cancel := context.WithCancel(context.Background())
	svc.workflows = &cancellingWorkflows{cancel: cancel}

	if err := svc.ExecuteRun(ctx, run.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}
	stored, _ := runs.GetByID(context.Background(), run.ID)
	if stored.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", stored.Status)
	}
}

// cancellingWorkflows отменяет контекст и сообщает, что workflow нет.
type cancellingWorkflows struct {
	cancel context.CancelFunc
}

func (c *cancellingWorkflows) GetByID(_ context.Context, _ uuid.UUID) (*domain.Workflow, error) {
	c.cancel()
	return nil, repo.ErrNotFound
}
