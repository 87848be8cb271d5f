package domain

// Context — общий контекст выполнения workflow.
//
// Каждый шаг читает из него входные поля и пишет результаты.
// Значения — произвольный JSON (string, float64, bool, map, slice, nil).
type Context map[string]any

// NewContext создаёт контекст из произвольной map.
// nil превращается в пустой контекст.
func NewContext(values map[string]any) Context {
	ctx := make(Context, len(values))
	for k, v := range values {
		ctx[k] = v
	}
	return ctx
}

// Clone возвращает поверхностную копию контекста.
// Изменения ключей копии не видны в исходном контексте.
func (c Context) Clone() Context {
	return NewContext(c)
}

// String возвращает строковое значение поля и признак того,
// что поле существует и является строкой.
func (c Context) String(key string) (string, bool) {
	v, ok := c[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
