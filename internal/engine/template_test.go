package engine

import (
	"testing"

	"github.com/shaiso/Stepflow/internal/domain"
)

func TestRender(t *testing.T) {
	ctx := domain.Context{
		"pageContent": "Hello world",
		"count":       float64(3),
		"ratio":       0.5,
		"flag":        true,
		"empty":       nil,
		"user.name":   "dotted",
		"obj":         map[string]any{"a": "b"},
		"list":        []any{"x", float64(1)},
	}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "no placeholders", tmpl: "plain text", want: "plain text"},
		{name: "simple", tmpl: "Summarize: {{pageContent}}", want: "Summarize: Hello world"},
		{name: "whitespace inside braces", tmpl: "{{  pageContent  }}!", want: "Hello world!"},
		{name: "integer number", tmpl: "n={{count}}", want: "n=3"},
		{name: "fraction", tmpl: "r={{ratio}}", want: "r=0.5"},
		{name: "bool", tmpl: "{{flag}}", want: "true"},
		{name: "null value", tmpl: "[{{empty}}]", want: "[]"},
		{name: "missing key", tmpl: "[{{missing}}]", want: "[]"},
		{name: "dotted key is literal", tmpl: "{{user.name}}", want: "dotted"},
		{name: "object as json", tmpl: "{{obj}}", want: `{"a":"b"}`},
		{name: "array as json", tmpl: "{{list}}", want: `["x",1]`},
		{name: "repeated", tmpl: "{{count}}-{{count}}", want: "3-3"},
		{name: "not a placeholder", tmpl: "{{ two words }}", want: "{{ two words }}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.tmpl, ctx)
			if got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestRender_NilContext(t *testing.T) {
	got := Render("value: {{x}}", nil)
	if got != "value: " {
		t.Errorf("expected %q, got %q", "value: ", got)
	}
}

func TestPlaceholders(t *testing.T) {
	keys := Placeholders("{{a}} and {{ b.c }} and {{a}}")
	want := []string{"a", "b.c", "a"}

	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d (%v)", len(want), len(keys), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: expected %s, got %s", i, want[i], keys[i])
		}
	}
}
