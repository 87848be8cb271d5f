package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorkflowFile — описание workflow в файле (.yaml, .yml или .json).
//
//	name: Summarize URL
//	steps:
//	  - id: fetch
//	    type: FETCH_URL
//	    order: 1
//	  - id: summarize
//	    type: LLM_SUMMARIZE
//	    order: 2
type WorkflowFile struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Trigger     string     `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Steps       []StepSpec `json:"steps" yaml:"steps"`
}

// LoadWorkflowFile читает и разбирает файл workflow.
// Формат определяется по расширению; неизвестное расширение читается как YAML.
func LoadWorkflowFile(path string) (*WorkflowFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return ParseWorkflowFile(data, filepath.Ext(path))
}

// ParseWorkflowFile разбирает содержимое файла workflow.
func ParseWorkflowFile(data []byte, ext string) (*WorkflowFile, error) {
	var wf WorkflowFile

	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&wf); err != nil {
			return nil, fmt.Errorf("invalid workflow JSON: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&wf); err != nil {
			return nil, fmt.Errorf("invalid workflow YAML: %w", err)
		}
	}

	if strings.TrimSpace(wf.Name) == "" {
		return nil, errors.New("workflow file: name is required")
	}
	for i, s := range wf.Steps {
		if s.ID == "" {
			return nil, fmt.Errorf("workflow file: step %d: id is required", i+1)
		}
		if s.Type == "" {
			return nil, fmt.Errorf("workflow file: step %q: type is required", s.ID)
		}
	}
	return &wf, nil
}

// Request превращает файл в тело запроса к API.
func (f *WorkflowFile) Request() WorkflowRequest {
	steps := f.Steps
	if steps == nil {
		steps = []StepSpec{}
	}
	return WorkflowRequest{
		Name:        f.Name,
		Description: f.Description,
		Trigger:     f.Trigger,
		Steps:       steps,
	}
}

// parseContext собирает начальный контекст из JSON и пар KEY=VALUE.
// Значение пары разбирается как YAML-скаляр: числа и true/false
// становятся числами и булевыми, остальное — строкой.
func parseContext(raw string, pairs []string) (map[string]any, error) {
	ctx := map[string]any{}

	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &ctx); err != nil {
			return nil, fmt.Errorf("invalid --context JSON object: %w", err)
		}
	}

	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}

		var parsed any
		if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || isComposite(parsed) {
			parsed = value
		}
		if parsed == nil {
			parsed = value
		}
		ctx[key] = parsed
	}

	return ctx, nil
}

func isComposite(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}
