// Package worker выполняет runs, поставленные в очередь.
//
// # Обзор
//
// Worker получает идентификаторы PENDING runs двумя путями:
//
//   - из очереди RabbitMQ runs.pending (event-driven)
//   - периодическим запросом PENDING runs в БД (polling fallback)
//
// и выполняет их через runner.Service.ExecuteRun. Сам run забирается
// атомарно, поэтому дубли из очереди и polling безопасны.
//
//	w := worker.New(worker.Config{
//	    Executor: service,
//	    Pending:  runRepo,
//	    Conn:     mqConn, // опционально
//	    Logger:   logger,
//	})
//	if err := w.Start(ctx); err != nil {
//	    ...
//	}
//	defer w.Stop()
//
// # Ошибки
//
// Некорректное сообщение уходит в DLQ (mq.Permanent). Ошибка выполнения
// инфраструктуры (БД недоступна) возвращает сообщение в очередь один раз.
// Ошибки шагов ошибками обработки не являются: run завершается FAILED.
package worker
