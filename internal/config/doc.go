// Package config загружает конфигурацию сервисов через viper.
//
// Порядок приоритета (от низшего к высшему):
//   - значения по умолчанию
//   - файл stepflow.yaml (или путь из --config / STEPFLOW_CONFIG)
//   - переменные окружения STEPFLOW_* и PORT, DB_URL, RABBITMQ_URL,
//     HF_API_TOKEN, LOG_LEVEL, LOG_FORMAT
package config
