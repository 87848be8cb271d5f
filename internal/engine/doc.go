// Package engine содержит проверку и шаблоны workflow.
//
// Включает:
//   - parser.go   — валидация Workflow перед сохранением
//   - template.go — рендеринг шаблонов вида {{ field }} по контексту
//
// Само выполнение шагов находится в пакете runner.
package engine
