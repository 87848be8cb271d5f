// Package scheduler запускает workflows по расписанию.
//
// Scheduler периодически находит schedules с наступившим next_due_at
// и ставит runs в очередь через runner.Service.Enqueue.
//
// Структура:
//   - scheduler.go — Tick и обработка одного schedule
//   - cron.go      — валидация и вычисление следующего времени (robfig/cron)
//   - leader.go    — лидерство через pg_try_advisory_lock и цикл Loop
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Schedules: scheduleRepo,
//	    Enqueuer:  service,
//	    Logger:    logger,
//	})
//	sched.Loop(ctx, time.Second, scheduler.NewAdvisoryLock(pool, scheduler.DefaultLockKey))
//
// Повторный тик для того же момента срабатывания не создаёт второй run:
// ключ идемпотентности "{schedule_id}_{next_due_at_unix}".
package scheduler
