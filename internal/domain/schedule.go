package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultTimezone — часовой пояс расписания по умолчанию.
const DefaultTimezone = "UTC"

// Schedule — расписание автоматического запуска workflow.
//
// Расписание задаётся одним из способов:
// - cron-выражением: "0 9 * * *" (каждый день в 9:00)
// - интервалом: каждые N секунд
//
// Scheduler проверяет NextDueAt и ставит run в очередь, когда время подошло.
type Schedule struct {
	ID         uuid.UUID `json:"id"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	Name       string    `json:"name,omitempty"`

	// CronExpr — пятипольное cron-выражение.
	// Если задан, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал между запусками в секундах.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — часовой пояс для cron-выражения, например "Europe/Moscow".
	Timezone string `json:"timezone"`

	Enabled bool `json:"enabled"`

	// Context — начальный контекст для каждого запуска.
	Context Context `json:"context,omitempty"`

	NextDueAt *time.Time `json:"next_due_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastRunID *uuid.UUID `json:"last_run_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// IdempotencyKey возвращает ключ run для текущего NextDueAt.
// Один и тот же момент срабатывания всегда даёт один и тот же ключ.
func (s *Schedule) IdempotencyKey() string {
	var due int64
	if s.NextDueAt != nil {
		due = s.NextDueAt.Unix()
	}
	return s.ID.String() + "_" + strconv.FormatInt(due, 10)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(runID uuid.UUID, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastRunID = &runID
	s.NextDueAt = &nextDue
	s.UpdatedAt = now
}
