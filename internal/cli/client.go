package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout — таймаут запроса по умолчанию. Синхронный запуск
// workflow с LLM шагами может занимать минуты.
const DefaultTimeout = 5 * time.Minute

// --- Response types (дублируются из api, CLI не импортирует internal/api) ---

// StepSpec — шаг workflow.
type StepSpec struct {
	ID     string         `json:"id" yaml:"id"`
	Type   string         `json:"type" yaml:"type"`
	Order  int            `json:"order" yaml:"order"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// WorkflowResponse — workflow из API.
type WorkflowResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Trigger     string     `json:"trigger"`
	Steps       []StepSpec `json:"steps"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
}

// StepResult — запись лога выполнения.
type StepResult struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// WorkflowRunResult — результат синхронного запуска.
type WorkflowRunResult struct {
	WorkflowID string         `json:"workflow_id"`
	RunID      string         `json:"run_id"`
	Status     string         `json:"status"`
	Context    map[string]any `json:"context"`
	StepsRun   []StepResult   `json:"steps_run"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID             string         `json:"id"`
	WorkflowID     string         `json:"workflow_id"`
	Status         string         `json:"status"`
	Trigger        string         `json:"trigger"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	StepsRun       []StepResult   `json:"steps_run,omitempty"`
	Error          string         `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	StartedAt      string         `json:"started_at,omitempty"`
	FinishedAt     string         `json:"finished_at,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	Name        string         `json:"name,omitempty"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	Context     map[string]any `json:"context,omitempty"`
	NextDueAt   string         `json:"next_due_at,omitempty"`
	LastRunAt   string         `json:"last_run_at,omitempty"`
	LastRunID   string         `json:"last_run_id,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// StepTypeResponse — тип шага.
type StepTypeResponse struct {
	Type string `json:"type"`
}

// PromptResponse — ответ /test-llm.
type PromptResponse struct {
	Prompt string `json:"prompt"`
	Result string `json:"result"`
}

// SummaryResponse — ответ /summarize-url.
type SummaryResponse struct {
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

// --- Request types ---

// WorkflowRequest — создание и полное обновление workflow.
type WorkflowRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Trigger     string     `json:"trigger,omitempty"`
	Steps       []StepSpec `json:"steps"`
}

// EnqueueRunRequest — асинхронный запуск.
type EnqueueRunRequest struct {
	Context        map[string]any `json:"context,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name,omitempty"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     *bool          `json:"enabled,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	WorkflowID string
	Status     string
	Limit      int
	Offset     int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для Stepflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// --- Workflows ---

// ListWorkflows возвращает workflow и их общее количество.
func (c *Client) ListWorkflows(limit, offset int) ([]WorkflowResponse, int, error) {
	var workflows []WorkflowResponse
	total, err := c.list("/api/v1/workflows", pageParams(limit, offset), &workflows)
	return workflows, total, err
}

// CreateWorkflow создаёт workflow.
func (c *Client) CreateWorkflow(req WorkflowRequest) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.post("/api/v1/workflows", req, &wf)
	return &wf, err
}

// CreateSampleWorkflow создаёт демонстрационный workflow.
func (c *Client) CreateSampleWorkflow() (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.post("/api/v1/workflows/sample", nil, &wf)
	return &wf, err
}

// GetWorkflow возвращает workflow по ID.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get("/api/v1/workflows/"+url.PathEscape(id), &wf)
	return &wf, err
}

// UpdateWorkflow заменяет workflow.
func (c *Client) UpdateWorkflow(id string, req WorkflowRequest) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.put("/api/v1/workflows/"+url.PathEscape(id), req, &wf)
	return &wf, err
}

// DeleteWorkflow удаляет workflow.
func (c *Client) DeleteWorkflow(id string) error {
	return c.delete("/api/v1/workflows/" + url.PathEscape(id))
}

// RunWorkflow синхронно выполняет workflow.
func (c *Client) RunWorkflow(id string, initial map[string]any) (*WorkflowRunResult, error) {
	if initial == nil {
		initial = map[string]any{}
	}
	var result WorkflowRunResult
	err := c.post("/api/v1/workflows/"+url.PathEscape(id)+"/run", initial, &result)
	return &result, err
}

// EnqueueRun ставит запуск в очередь.
func (c *Client) EnqueueRun(id string, req EnqueueRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/workflows/"+url.PathEscape(id)+"/runs", req, &run)
	return &run, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, int, error) {
	params := pageParams(opts.Limit, opts.Offset)
	if opts.WorkflowID != "" {
		params.Set("workflow_id", opts.WorkflowID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}

	var runs []RunResponse
	total, err := c.list("/api/v1/runs", params, &runs)
	return runs, total, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+url.PathEscape(id), &run)
	return &run, err
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если workflowID не пустой — фильтрует.
func (c *Client) ListSchedules(workflowID string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if workflowID != "" {
		params.Set("workflow_id", workflowID)
	}

	var schedules []ScheduleResponse
	_, err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для workflow.
func (c *Client) CreateSchedule(workflowID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/workflows/"+url.PathEscape(workflowID)+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+url.PathEscape(id), &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + url.PathEscape(id))
}

// SetScheduleEnabled включает или выключает schedule.
func (c *Client) SetScheduleEnabled(id string, enabled bool) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": enabled}
	err := c.put("/api/v1/schedules/"+url.PathEscape(id)+"/enabled", body, &schedule)
	return &schedule, err
}

// --- LLM ---

// Prompt отправляет prompt в LLM через API.
func (c *Client) Prompt(prompt string) (*PromptResponse, error) {
	var resp PromptResponse
	err := c.post("/api/v1/test-llm", map[string]string{"prompt": prompt}, &resp)
	return &resp, err
}

// SummarizeURL загружает страницу и возвращает её краткое содержание.
func (c *Client) SummarizeURL(pageURL string) (*SummaryResponse, error) {
	var resp SummaryResponse
	err := c.post("/api/v1/summarize-url", map[string]string{"url": pageURL}, &resp)
	return &resp, err
}

// StepTypes возвращает поддерживаемые типы шагов.
func (c *Client) StepTypes() ([]StepTypeResponse, error) {
	var types []StepTypeResponse
	_, err := c.list("/api/v1/step-types", nil, &types)
	return types, err
}

// --- HTTP helpers ---

func pageParams(limit, offset int) url.Values {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	return params
}

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) (int, error) {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return 0, err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	return lr.Total, json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
