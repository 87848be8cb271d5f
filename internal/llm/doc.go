// Package llm — клиент OpenAI-совместимого chat completion API
// (по умолчанию роутер Hugging Face).
//
// Один запрос на вызов, без повторов. Любой статус вне 2xx
// возвращается как *APIError с сырым телом ответа.
package llm
