// Package mathagent is a Go client for the MathAgent HTTP API.
package mathagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Synchronous queries run a whole agent session, so it is generous.
const DefaultHTTPTimeout = 2 * time.Minute

// Client wraps the HTTP interactions with the MathAgent REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// TraceEntry describes one executed plan step.
type TraceEntry struct {
	Round   int    `json:"round"`
	Step    int    `json:"step_number"`
	Kind    string `json:"kind"`
	Tool    string `json:"tool_name,omitempty"`
	Outcome string `json:"outcome"`
	Value   string `json:"value,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
}

// Diagnostic describes a session level failure.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Round   int    `json:"round,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QueryRequest is the payload of a synchronous query or a task submission.
type QueryRequest struct {
	Query       string            `json:"query"`
	Preferences map[string]string `json:"preferences,omitempty"`
	SessionID   string            `json:"session_id,omitempty"`
}

// QueryResponse is returned by /api/query.
type QueryResponse struct {
	Status       string       `json:"status"`
	Result       string       `json:"result"`
	Query        string       `json:"query"`
	Answer       string       `json:"answer"`
	Success      bool         `json:"success"`
	FullResponse string       `json:"full_response"`
	SessionID    string       `json:"session_id"`
	Message      string       `json:"message,omitempty"`
	Counter      int          `json:"counter"`
	Trace        []TraceEntry `json:"trace"`
	Diagnostics  []Diagnostic `json:"diagnostics,omitempty"`
}

// TaskResult is the outcome of an asynchronous session.
type TaskResult struct {
	SessionID   string       `json:"session_id"`
	Answer      string       `json:"answer"`
	Success     bool         `json:"success"`
	Counter     int          `json:"counter"`
	Rounds      int          `json:"rounds"`
	Trace       []TraceEntry `json:"trace,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Task is the server side view of a queued session.
type Task struct {
	ID          string            `json:"id"`
	Query       string            `json:"query"`
	Preferences map[string]string `json:"preferences,omitempty"`
	Status      string            `json:"status"`
	Attempts    int               `json:"attempts"`
	MaxRetries  int               `json:"max_retries"`
	LastError   string            `json:"last_error,omitempty"`
	ErrorCode   string            `json:"error_code,omitempty"`
	Result      *TaskResult       `json:"result,omitempty"`
	CreatedAt   int64             `json:"created_at"`
	UpdatedAt   int64             `json:"updated_at"`
}

// Done reports whether the task reached a terminal status.
func (t Task) Done() bool {
	return t.Status == "succeeded" || t.Status == "failed"
}

// TaskStats aggregates task counts by status.
type TaskStats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Running         int   `json:"running"`
	Succeeded       int   `json:"succeeded"`
	Failed          int   `json:"failed"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

// ListParams filters ListTasks and TaskStats. Zero values are omitted.
type ListParams struct {
	Limit     int
	Offset    int
	Statuses  []string
	HasResult *bool
	Since     time.Time
	Until     time.Time
	Ascending bool
	Query     string
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		v.Set("offset", strconv.Itoa(p.Offset))
	}
	for _, s := range p.Statuses {
		v.Add("status", s)
	}
	if p.HasResult != nil {
		v.Set("has_result", strconv.FormatBool(*p.HasResult))
	}
	if !p.Since.IsZero() {
		v.Set("since", p.Since.UTC().Format(time.RFC3339))
	}
	if !p.Until.IsZero() {
		v.Set("until", p.Until.UTC().Format(time.RFC3339))
	}
	if p.Ascending {
		v.Set("order", "asc")
	}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	return v
}

// ToolParam declares one tool parameter.
type ToolParam struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	List        bool   `json:"list,omitempty"`
	Integer     bool   `json:"integer,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	Description string `json:"description,omitempty"`
}

// Tool is one entry of the tool catalog.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Params      []ToolParam `json:"params"`
	Result      struct {
		Role string `json:"role"`
		List bool   `json:"list,omitempty"`
	} `json:"result"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("mathagent api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("mathagent api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the MathAgent API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Query runs one session synchronously.
func (c *Client) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	var out QueryResponse
	if err := c.post(ctx, "/api/query", req, &out); err != nil {
		return QueryResponse{}, err
	}
	return out, nil
}

// SubmitTask queues a session for asynchronous execution.
func (c *Client) SubmitTask(ctx context.Context, req QueryRequest) (Task, error) {
	var out Task
	if err := c.post(ctx, "/api/v1/tasks", req, &out); err != nil {
		return Task{}, err
	}
	return out, nil
}

// GetTask fetches a task by identifier.
func (c *Client) GetTask(ctx context.Context, taskID string) (Task, error) {
	if taskID == "" {
		return Task{}, errors.New("mathagent: task id is empty")
	}
	var out Task
	if err := c.get(ctx, "/api/v1/tasks/"+url.PathEscape(taskID), nil, &out); err != nil {
		return Task{}, err
	}
	return out, nil
}

// ListTasks lists tasks matching params.
func (c *Client) ListTasks(ctx context.Context, params ListParams) ([]Task, error) {
	var out []Task
	if err := c.get(ctx, "/api/v1/tasks", params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TaskStats returns task counts matching params.
func (c *Client) TaskStats(ctx context.Context, params ListParams) (TaskStats, error) {
	var out TaskStats
	if err := c.get(ctx, "/api/v1/tasks/stats", params.values(), &out); err != nil {
		return TaskStats{}, err
	}
	return out, nil
}

// WaitForTask polls GetTask until the task is done or ctx ends.
func (c *Client) WaitForTask(ctx context.Context, taskID string, interval time.Duration) (Task, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		task, err := c.GetTask(ctx, taskID)
		if err != nil {
			return Task{}, err
		}
		if task.Done() {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tools returns the tool catalog.
func (c *Client) Tools(ctx context.Context) ([]Tool, error) {
	var out []Tool
	if err := c.get(ctx, "/api/v1/tools", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health checks the liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "healthy" {
		return fmt.Errorf("mathagent: unexpected health status %q", out.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		_ = json.Unmarshal(data, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
