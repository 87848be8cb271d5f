// Package runner — ядро Stepflow: последовательное выполнение шагов workflow.
//
// Runner выполняет шаги, отсортированные по order, передавая каждому
// контекст предыдущего. Первая ошибка останавливает выполнение; в журнале
// остаются записи только о запущенных шагах.
//
// Service добавляет к Runner хранилища и очередь:
//   - RunWorkflow — синхронный запуск (POST /workflows/{id}/run)
//   - Enqueue     — создание PENDING run и публикация run.pending
//   - ExecuteRun  — выполнение PENDING run воркером
package runner
