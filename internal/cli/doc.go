// Package cli реализует инструмент командной строки Stepflow.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Stepflow API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует запросы, разбор конвертов
// {"data"}, {"data","total"}, {"error"} и превращает ошибки сервера в *APIError.
//
//	client := cli.NewClient("http://localhost:8080", time.Minute)
//	workflows, total, err := client.ListWorkflows(50, 0)
//
// ## Output
//
// Форматирование вывода: таблицы (text/tabwriter) по умолчанию,
// JSON с флагом --json. Данные идут в stdout, сообщения — в stderr,
// поэтому работает pipe: stepflow workflow list --json | jq .
//
// ## Файлы workflow
//
// workflow create/update читают описание из YAML или JSON файла
// (LoadWorkflowFile). Неизвестные поля считаются ошибкой.
//
// ## Commands
//
//   - workflow: list, show, create, update, delete, sample, run, enqueue
//   - run: list, show
//   - schedule: list, create, show, delete, enable, disable
//   - llm: prompt, summarize
//   - step-types
package cli
