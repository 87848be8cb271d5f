package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWorkflow_SortedSteps(t *testing.T) {
	wf := &Workflow{
		Steps: []Step{
			{ID: "c", Order: 3},
			{ID: "a", Order: 1},
			{ID: "b1", Order: 2},
			{ID: "b2", Order: 2},
		},
	}

	sorted := wf.SortedSteps()

	want := []string{"a", "b1", "b2", "c"}
	for i, id := range want {
		if sorted[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, sorted[i].ID)
		}
	}

	// Исходный порядок не меняется
	if wf.Steps[0].ID != "c" {
		t.Errorf("original steps should not be reordered, got %s first", wf.Steps[0].ID)
	}
}

func TestStepType_IsValid(t *testing.T) {
	for _, st := range StepTypes {
		if !st.IsValid() {
			t.Errorf("%s should be valid", st)
		}
	}

	for _, st := range []StepType{"", "fetch_url", "HTTP"} {
		if st.IsValid() {
			t.Errorf("%q should be invalid", st)
		}
	}
}

func TestContext_Clone(t *testing.T) {
	orig := Context{"a": "1", "nested": map[string]any{"k": "v"}}

	clone := orig.Clone()
	clone["a"] = "2"
	clone["b"] = "new"

	if orig["a"] != "1" {
		t.Errorf("original should keep a=1, got %v", orig["a"])
	}
	if _, ok := orig["b"]; ok {
		t.Error("original should not receive new keys")
	}
}

func TestContext_NilValues(t *testing.T) {
	ctx := NewContext(nil)
	if ctx == nil || len(ctx) != 0 {
		t.Errorf("expected empty context, got %v", ctx)
	}

	ctx["n"] = 42.0
	if _, ok := ctx.String("n"); ok {
		t.Error("non-string value should not be returned as string")
	}
	if _, ok := ctx.String("missing"); ok {
		t.Error("missing value should not be returned")
	}
}

func TestRun_Complete(t *testing.T) {
	tests := []struct {
		name       string
		stepsRun   []StepResult
		wantStatus RunStatus
		wantError  string
	}{
		{
			name:       "no steps",
			wantStatus: RunStatusSucceeded,
		},
		{
			name: "all success",
			stepsRun: []StepResult{
				{ID: "s1", Type: StepTypeEcho, Status: StepStatusSuccess},
			},
			wantStatus: RunStatusSucceeded,
		},
		{
			name: "last failed",
			stepsRun: []StepResult{
				{ID: "s1", Type: StepTypeEcho, Status: StepStatusSuccess},
				{ID: "s2", Type: StepTypeFetchURL, Status: StepStatusError, Error: "boom"},
			},
			wantStatus: RunStatusFailed,
			wantError:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &Run{ID: uuid.New()}
			run.MarkRunning()
			run.Complete(Context{"x": 1}, tt.stepsRun)

			if run.Status != tt.wantStatus {
				t.Errorf("expected %s, got %s", tt.wantStatus, run.Status)
			}
			if run.Error != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, run.Error)
			}
			if !run.IsFinished() {
				t.Error("run should be finished")
			}
			if run.FinishedAt == nil {
				t.Error("FinishedAt should be set")
			}
		})
	}
}

func TestSchedule_IsDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		s    Schedule
		want bool
	}{
		{"disabled", Schedule{Enabled: false, NextDueAt: &past}, false},
		{"no next due", Schedule{Enabled: true}, false},
		{"past", Schedule{Enabled: true, NextDueAt: &past}, true},
		{"exact", Schedule{Enabled: true, NextDueAt: &now}, true},
		{"future", Schedule{Enabled: true, NextDueAt: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.IsDue(now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchedule_IdempotencyKey(t *testing.T) {
	due := time.Unix(1700000000, 0)
	s := Schedule{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), NextDueAt: &due}

	want := "11111111-1111-1111-1111-111111111111_1700000000"
	if got := s.IdempotencyKey(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
