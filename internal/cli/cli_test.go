package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeAPI записывает последний запрос и отвечает заданным телом.
type fakeAPI struct {
	method string
	path   string
	query  string
	body   []byte

	status   int
	response string
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.method = r.Method
		f.path = r.URL.Path
		f.query = r.URL.RawQuery
		f.body, _ = io.ReadAll(r.Body)

		status := f.status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, f.response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, srv *httptest.Server, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd("test", &out, &errOut)
	root.SetArgs(append([]string{"--api-url", srv.URL}, args...))
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestClient_ListWorkflows(t *testing.T) {
	api := &fakeAPI{response: `{"data":[{"id":"w1","name":"one","trigger":"manual","steps":[]}],"total":3}`}
	srv := api.server(t)

	workflows, total, err := NewClient(srv.URL+"/", 0).ListWorkflows(1, 2)
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if len(workflows) != 1 || workflows[0].Name != "one" {
		t.Errorf("unexpected workflows %+v", workflows)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if api.path != "/api/v1/workflows" || api.query != "limit=1&offset=2" {
		t.Errorf("unexpected request %s?%s", api.path, api.query)
	}
}

func TestClient_APIError(t *testing.T) {
	api := &fakeAPI{status: http.StatusNotFound, response: `{"error":{"code":"NOT_FOUND","message":"workflow not found"}}`}
	srv := api.server(t)

	_, err := NewClient(srv.URL, 0).GetWorkflow("x")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if err.Error() != "NOT_FOUND: workflow not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestClient_APIErrorWithoutEnvelope(t *testing.T) {
	api := &fakeAPI{status: http.StatusBadGateway, response: `upstream down`}
	srv := api.server(t)

	_, err := NewClient(srv.URL, 0).GetRun("x")
	if err == nil || !strings.Contains(err.Error(), "HTTP 502") {
		t.Errorf("expected HTTP 502 error, got %v", err)
	}
}

func TestClient_RunWorkflowSendsObject(t *testing.T) {
	api := &fakeAPI{response: `{"data":{"run_id":"r1","status":"SUCCEEDED","context":{}}}`}
	srv := api.server(t)

	if _, err := NewClient(srv.URL, 0).RunWorkflow("w1", nil); err != nil {
		t.Fatalf("RunWorkflow: %v", err)
	}
	if api.method != http.MethodPost || api.path != "/api/v1/workflows/w1/run" {
		t.Errorf("unexpected request %s %s", api.method, api.path)
	}
	if string(api.body) != "{}" {
		t.Errorf("nil context should be sent as {}, got %s", api.body)
	}
}

func TestParseWorkflowFile(t *testing.T) {
	yamlDoc := `
name: Summarize
trigger: manual
steps:
  - id: fetch
    type: FETCH_URL
    order: 1
    config:
      maxChars: 1000
  - id: sum
    type: LLM_SUMMARIZE
    order: 2
`
	jsonDoc := `{"name":"Summarize","steps":[{"id":"fetch","type":"FETCH_URL","order":1,"config":{"maxChars":1000}},{"id":"sum","type":"LLM_SUMMARIZE","order":2}]}`

	for _, tc := range []struct {
		ext  string
		data string
	}{{".yaml", yamlDoc}, {".json", jsonDoc}} {
		t.Run(tc.ext, func(t *testing.T) {
			wf, err := ParseWorkflowFile([]byte(tc.data), tc.ext)
			if err != nil {
				t.Fatalf("ParseWorkflowFile: %v", err)
			}
			if wf.Name != "Summarize" || len(wf.Steps) != 2 {
				t.Fatalf("unexpected workflow %+v", wf)
			}
			if wf.Steps[1].Type != "LLM_SUMMARIZE" || wf.Steps[1].Order != 2 {
				t.Errorf("unexpected step %+v", wf.Steps[1])
			}

			// Конфиг должен сериализоваться в JSON для API.
			if _, err := json.Marshal(wf.Request()); err != nil {
				t.Errorf("request not JSON-encodable: %v", err)
			}
		})
	}
}

func TestParseWorkflowFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
	}{
		{name: "missing name", data: "steps: []", ext: ".yaml"},
		{name: "unknown field", data: "name: x\nstepz: []", ext: ".yml"},
		{name: "step without type", data: "name: x\nsteps:\n  - id: a", ext: ".yaml"},
		{name: "broken json", data: `{"name":`, ext: ".json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseWorkflowFile([]byte(tt.data), tt.ext); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseContext(t *testing.T) {
	ctx, err := parseContext(`{"url":"https://example.com","n":1}`, []string{"count=3", "flag=true", "text=hello world", "empty=", "list=[1,2]"})
	if err != nil {
		t.Fatalf("parseContext: %v", err)
	}

	if ctx["url"] != "https://example.com" {
		t.Errorf("unexpected url %v", ctx["url"])
	}
	if ctx["count"] != 3 {
		t.Errorf("expected int 3, got %#v", ctx["count"])
	}
	if ctx["flag"] != true {
		t.Errorf("expected bool, got %#v", ctx["flag"])
	}
	if ctx["text"] != "hello world" {
		t.Errorf("unexpected text %#v", ctx["text"])
	}
	if ctx["empty"] != "" {
		t.Errorf("expected empty string, got %#v", ctx["empty"])
	}
	if ctx["list"] != "[1,2]" {
		t.Errorf("composite values stay strings, got %#v", ctx["list"])
	}

	if _, err := parseContext("", []string{"novalue"}); err == nil {
		t.Error("expected error for missing =")
	}
	if _, err := parseContext("[1]", nil); err == nil {
		t.Error("expected error for non-object context")
	}
}

func TestWorkflowCreateCmd(t *testing.T) {
	api := &fakeAPI{status: http.StatusCreated, response: `{"data":{"id":"w1","name":"Shout","trigger":"manual","steps":[{"id":"a","type":"ECHO","order":1}]}}`}
	srv := api.server(t)

	path := filepath.Join(t.TempDir(), "wf.yaml")
	if err := os.WriteFile(path, []byte("name: Shout\nsteps:\n  - id: a\n    type: ECHO\n    order: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, err := execute(t, srv, "workflow", "create", "-f", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if api.method != http.MethodPost || api.path != "/api/v1/workflows" {
		t.Errorf("unexpected request %s %s", api.method, api.path)
	}
	var sent WorkflowRequest
	if err := json.Unmarshal(api.body, &sent); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if sent.Name != "Shout" || len(sent.Steps) != 1 {
		t.Errorf("unexpected request body %+v", sent)
	}
	if !strings.Contains(stderr, "Workflow created: w1") {
		t.Errorf("missing success message, got %q", stderr)
	}
	if !strings.Contains(stdout, "Shout") {
		t.Errorf("table should contain workflow name, got %q", stdout)
	}
}

func TestWorkflowRunCmd(t *testing.T) {
	api := &fakeAPI{response: `{"data":{"workflow_id":"w1","run_id":"r1","status":"SUCCEEDED",
		"context":{"text":"HELLO"},"steps_run":[{"id":"a","type":"TRANSFORM_TEXT","status":"success"}]}}`}
	srv := api.server(t)

	stdout, _, err := execute(t, srv, "workflow", "run", "w1", "--input", "text=hello")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if string(api.body) != `{"text":"hello"}` {
		t.Errorf("unexpected body %s", api.body)
	}
	if !strings.Contains(stdout, "HELLO") || !strings.Contains(stdout, "TRANSFORM_TEXT") {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestWorkflowRunCmd_Failed(t *testing.T) {
	api := &fakeAPI{response: `{"data":{"run_id":"r1","status":"FAILED","context":{},
		"steps_run":[{"id":"a","type":"FETCH_URL","status":"error","error":"boom"}]}}`}
	srv := api.server(t)

	stdout, _, err := execute(t, srv, "--json", "workflow", "run", "w1")
	if err == nil {
		t.Fatal("failed run should produce a non-nil error")
	}

	var result WorkflowRunResult
	if jErr := json.Unmarshal([]byte(stdout), &result); jErr != nil {
		t.Fatalf("json output expected: %v", jErr)
	}
	if result.StepsRun[0].Error != "boom" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestScheduleCmds(t *testing.T) {
	api := &fakeAPI{response: `{"data":{"id":"s1","workflow_id":"w1","cron_expr":"@hourly","timezone":"UTC","enabled":false}}`}
	srv := api.server(t)

	if _, _, err := execute(t, srv, "schedule", "disable", "s1"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if api.method != http.MethodPut || api.path != "/api/v1/schedules/s1/enabled" || string(api.body) != `{"enabled":false}` {
		t.Errorf("unexpected request %s %s %s", api.method, api.path, api.body)
	}

	api.status = http.StatusCreated
	if _, _, err := execute(t, srv, "schedule", "create", "w1", "--cron", "@hourly", "--input", "url=https://go.dev"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var sent CreateScheduleRequest
	if err := json.Unmarshal(api.body, &sent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if api.path != "/api/v1/workflows/w1/schedules" || sent.CronExpr != "@hourly" || sent.Context["url"] != "https://go.dev" {
		t.Errorf("unexpected create request %s %+v", api.path, sent)
	}
	if sent.Enabled == nil || !*sent.Enabled {
		t.Error("schedule should be created enabled")
	}

	if _, _, err := execute(t, srv, "schedule", "create", "w1"); err == nil {
		t.Error("expected error without --cron or --interval")
	}
}

func TestLLMPromptCmd(t *testing.T) {
	api := &fakeAPI{response: `{"data":{"prompt":"say hi","result":"hi!"}}`}
	srv := api.server(t)

	stdout, _, err := execute(t, srv, "llm", "prompt", "say", "hi")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(api.body) != `{"prompt":"say hi"}` {
		t.Errorf("unexpected body %s", api.body)
	}
	if strings.TrimSpace(stdout) != "hi!" {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestStepTypesCmd(t *testing.T) {
	api := &fakeAPI{response: `{"data":[{"type":"ECHO"},{"type":"FETCH_URL"}],"total":2}`}
	srv := api.server(t)

	stdout, _, err := execute(t, srv, "step-types")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(stdout, "ECHO") || !strings.Contains(stdout, "FETCH_URL") {
		t.Errorf("unexpected output %q", stdout)
	}
}
