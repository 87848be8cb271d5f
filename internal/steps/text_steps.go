package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Stepflow/internal/domain"
)

// Операции TRANSFORM_TEXT.
const (
	OpUppercase = "uppercase"
	OpLowercase = "lowercase"
	OpTrim      = "trim"
)

// TransformTextStep — простое преобразование строки.
//
// Конфигурация:
//
//	{
//	    "inputField": "text",
//	    "outputField": "text",      // по умолчанию = inputField
//	    "operation": "uppercase"    // uppercase | lowercase | trim
//	}
//
// Неизвестная операция оставляет значение без изменений.
type TransformTextStep struct{}

// NewTransformTextStep создаёт новый TransformTextStep.
func NewTransformTextStep() *TransformTextStep {
	return &TransformTextStep{}
}

// Type возвращает тип шага.
func (s *TransformTextStep) Type() domain.StepType {
	return domain.StepTypeTransformText
}

// Execute применяет операцию к строке.
func (s *TransformTextStep) Execute(_ context.Context, req *Request) (*Response, error) {
	inputField := GetConfigStringDefault(req.Config, "inputField", "text")
	outputField := GetConfigStringDefault(req.Config, "outputField", inputField)
	operation := GetConfigStringDefault(req.Config, "operation", OpUppercase)

	value, ok := req.Context.String(inputField)
	if !ok {
		return nil, fmt.Errorf("%w: %s: input field %q is not a string",
			ErrInvalidInput, domain.StepTypeTransformText, inputField)
	}

	return Output(outputField, ApplyOperation(operation, value)), nil
}

// ApplyOperation применяет операцию TRANSFORM_TEXT к строке.
func ApplyOperation(operation, value string) string {
	switch operation {
	case OpUppercase:
		return strings.ToUpper(value)
	case OpLowercase:
		return strings.ToLower(value)
	case OpTrim:
		return strings.TrimSpace(value)
	default:
		return value
	}
}

// DefaultEchoMessage — сообщение ECHO по умолчанию.
const DefaultEchoMessage = "Echo step ran."

// EchoStep записывает в контекст константу. Никогда не падает.
//
// Конфигурация:
//
//	{
//	    "message": "Echo step ran.",
//	    "outputField": "echo"
//	}
type EchoStep struct{}

// NewEchoStep создаёт новый EchoStep.
func NewEchoStep() *EchoStep {
	return &EchoStep{}
}

// Type возвращает тип шага.
func (s *EchoStep) Type() domain.StepType {
	return domain.StepTypeEcho
}

// Execute записывает сообщение. Непустое значение message любого типа
// пишется как есть, пустое ("", 0, false, null) заменяется на DefaultEchoMessage.
func (s *EchoStep) Execute(_ context.Context, req *Request) (*Response, error) {
	var message any = DefaultEchoMessage
	if v := req.Config["message"]; !isEmptyValue(v) {
		message = v
	}
	outputField := GetConfigStringDefault(req.Config, "outputField", "echo")
	return Output(outputField, message), nil
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case int:
		return x == 0
	case int64:
		return x == 0
	}
	return false
}
