package scheduler

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // часовые пояса без системной базы tzdata

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Stepflow/internal/domain"
)

// Ошибки валидации расписания.
var (
	// ErrNoTrigger — не задан ни cron_expr, ни interval_sec.
	ErrNoTrigger = errors.New("schedule has neither cron_expr nor interval_sec")

	// ErrInvalidCron — cron-выражение не разбирается.
	ErrInvalidCron = errors.New("invalid cron expression")

	// ErrInvalidInterval — интервал не положительный.
	ErrInvalidInterval = errors.New("interval_sec must be positive")

	// ErrInvalidTimezone — неизвестный часовой пояс.
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// cronParser — пятипольные выражения и дескрипторы (@hourly, @daily, ...).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate проверяет расписание перед сохранением.
func Validate(sched *domain.Schedule) error {
	if sched.CronExpr == "" && sched.IntervalSec == 0 {
		return ErrNoTrigger
	}
	if sched.IsCron() {
		if _, err := cronParser.Parse(sched.CronExpr); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidCron, sched.CronExpr, err)
		}
	} else if sched.IntervalSec < 0 {
		return ErrInvalidInterval
	}
	if _, err := loadLocation(sched.Timezone); err != nil {
		return err
	}
	return nil
}

func loadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrInvalidTimezone, tz)
	}
	return loc, nil
}

// CalculateNextDue вычисляет следующее время выполнения после from.
// Cron-выражение вычисляется в часовом поясе расписания.
// Результат всегда в UTC.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	loc, err := loadLocation(sched.Timezone)
	if err != nil {
		return time.Time{}, err
	}

	switch {
	case sched.IsCron():
		schedule, err := cronParser.Parse(sched.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidCron, sched.CronExpr, err)
		}
		return schedule.Next(from.In(loc)).UTC(), nil

	case sched.IsInterval():
		return from.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil

	default:
		return time.Time{}, ErrNoTrigger
	}
}
