// Package manus is a client for the Manus task-execution API: two-phase
// file upload, task creation and task status queries.
package manus

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/expose-cli/internal/resilience"
)

const (
	defaultBaseURL     = "https://api.manus.ai/v1"
	defaultTaskURLBase = "https://manus.im/app/"
)

// ErrNotConfigured is returned by every call when no API key is set.
var ErrNotConfigured = eris.New("manus: api key not configured")

// Client talks to the task-execution service.
type Client interface {
	// Configured reports whether an API key is present.
	Configured() bool
	CreateFileSlot(ctx context.Context, filename string) (*FileSlot, error)
	UploadContent(ctx context.Context, uploadURL string, data []byte, contentType string) error
	// UploadFile runs both upload phases and returns the usable file ID.
	UploadFile(ctx context.Context, filename string, data []byte) (string, error)
	CreateTask(ctx context.Context, fileID string, pc PromptContext) (string, error)
	GetTask(ctx context.Context, taskID string) (*TaskStatus, error)
	// TaskURL is the browser link for a task.
	TaskURL(taskID string) string
}

// FileSlot is a created file record with its presigned upload target.
type FileSlot struct {
	ID        string `json:"id"`
	UploadURL string `json:"upload_url"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL (including the /v1 prefix).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client used for API and upload requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithProjectID attaches created tasks to a project.
func WithProjectID(id string) Option {
	return func(c *httpClient) { c.projectID = id }
}

// WithTaskURLBase overrides the prefix used by TaskURL.
func WithTaskURLBase(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.taskURLBase = u
		}
	}
}

// WithRetry sets the retry policy for idempotent calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

type httpClient struct {
	apiKey      string
	baseURL     string
	taskURLBase string
	projectID   string
	http        *http.Client
	retry       resilience.RetryConfig
}

// NewClient creates a Manus client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		taskURLBase: defaultTaskURLBase,
		http:        &http.Client{Timeout: 60 * time.Second},
		retry:       resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Configured() bool {
	return c.apiKey != ""
}

func (c *httpClient) TaskURL(taskID string) string {
	if taskID == "" {
		return ""
	}
	return c.taskURLBase + url.PathEscape(taskID)
}

func (c *httpClient) CreateFileSlot(ctx context.Context, filename string) (*FileSlot, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("manus", "create_file")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*FileSlot, error) {
		var slot FileSlot
		if err := c.doJSON(ctx, http.MethodPost, "/files", map[string]string{"filename": filename}, &slot); err != nil {
			return nil, eris.Wrap(err, "manus: create file")
		}
		if slot.ID == "" || slot.UploadURL == "" {
			return nil, eris.New("manus: create file: response missing id or upload_url")
		}
		return &slot, nil
	})
}

func (c *httpClient) UploadContent(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	if uploadURL == "" {
		return eris.New("manus: upload: empty upload url")
	}
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("manus", "upload")

	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
		if err != nil {
			return eris.Wrap(err, "manus: upload: build request")
		}
		req.Header.Set("Content-Type", contentType)
		req.ContentLength = int64(len(data))

		// The presigned target is not the API host; no API_KEY header.
		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "manus: upload")
		}
		defer resp.Body.Close() //nolint:errcheck
		if err := resilience.CheckResponse("manus upload", resp); err != nil {
			return eris.Wrap(err, "manus: upload")
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	})
}

func (c *httpClient) UploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	slot, err := c.CreateFileSlot(ctx, filename)
	if err != nil {
		return "", err
	}
	if err := c.UploadContent(ctx, slot.UploadURL, data, "application/pdf"); err != nil {
		return "", err
	}
	return slot.ID, nil
}

type attachment struct {
	Type   string `json:"type"`
	FileID string `json:"file_id"`
}

type createTaskRequest struct {
	Type        string       `json:"type"`
	Prompt      string       `json:"prompt"`
	Attachments []attachment `json:"attachments"`
	ProjectID   string       `json:"project_id,omitempty"`
}

// CreateTask is not retried: a request that timed out may still have
// created a task upstream.
func (c *httpClient) CreateTask(ctx context.Context, fileID string, pc PromptContext) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if fileID == "" {
		return "", eris.New("manus: create task: empty file id")
	}

	body := createTaskRequest{
		Type:        "analysis",
		Prompt:      BuildPrompt(pc),
		Attachments: []attachment{{Type: "file", FileID: fileID}},
		ProjectID:   c.projectID,
	}
	var out struct {
		ID     string `json:"id"`
		TaskID string `json:"task_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/tasks", body, &out); err != nil {
		return "", eris.Wrap(err, "manus: create task")
	}
	id := out.ID
	if id == "" {
		id = out.TaskID
	}
	if id == "" {
		return "", eris.New("manus: create task: response missing id")
	}
	return id, nil
}

func (c *httpClient) GetTask(ctx context.Context, taskID string) (*TaskStatus, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if taskID == "" {
		return nil, eris.New("manus: get task: empty task id")
	}
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("manus", "get_task")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*TaskStatus, error) {
		var raw json.RawMessage
		if err := c.doJSON(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &raw); err != nil {
			return nil, eris.Wrapf(err, "manus: get task %s", taskID)
		}
		return ParseTask(raw)
	})
}

func (c *httpClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	// Sent verbatim; Set would canonicalize the name to Api_key.
	req.Header["API_KEY"] = []string{c.apiKey}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckResponse("manus", resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "parse response")
	}
	return nil
}
