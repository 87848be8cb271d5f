// Package telemetry — логирование и метрики Stepflow.
//
// Логгер (slog) настраивается через SetupLogger и передаётся по контексту
// (WithLogger/FromContext); WithRunID, WithWorkflowID и WithStep добавляют
// к нему поля исполнения. Метрики runs, шагов, LLM запросов и HTTP
// регистрируются в Prometheus и отдаются на /metrics каждого процесса.
package telemetry
