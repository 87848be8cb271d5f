package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shaiso/Stepflow/internal/domain"
)

// placeholderRe — выражение {{ field }}.
// Ключ ищется в контексте буквально, точка не означает вложенность.
var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// Render подставляет значения контекста в шаблон.
//
//	Render("Summarize: {{ pageContent }}", ctx)
//
// Отсутствующие и null значения заменяются пустой строкой.
func Render(tmpl string, ctx domain.Context) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		return FormatValue(ctx[key])
	})
}

// Placeholders возвращает ключи, использованные в шаблоне, в порядке появления.
func Placeholders(tmpl string) []string {
	matches := placeholderRe.FindAllStringSubmatch(tmpl, -1)
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, m[1])
	}
	return keys
}

// FormatValue приводит значение контекста к строке для подстановки в шаблон.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
