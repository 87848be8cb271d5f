// Package repo — хранение workflows, runs и schedules в PostgreSQL (pgx/v5).
//
// Схема встроена в бинарник (schema.sql) и применяется EnsureSchema.
// JSON-поля (шаги, контексты, журнал выполнения) хранятся в JSONB.
package repo
