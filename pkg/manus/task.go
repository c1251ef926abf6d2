package manus

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// State is a task state as the orchestrator sees it.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// TaskStatus is a parsed GET /tasks/{id} response.
type TaskStatus struct {
	ID    string
	State State
	// Output is the final assistant text. Only meaningful when State is completed.
	Output string
	// Progress is advisory; nil when the service did not report one.
	Progress    *float64
	CurrentStep string
	// Raw is the full response body.
	Raw json.RawMessage
}

type taskBody struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	TaskStatus  string          `json:"task_status"`
	CurrentStep string          `json:"current_step"`
	Progress    json.RawMessage `json:"progress"`
	Output      json.RawMessage `json:"output"`
	Result      *struct {
		Output json.RawMessage `json:"output"`
	} `json:"result"`
}

type message struct {
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// ParseTask decodes a task response. Unknown fields and unexpected shapes
// of output or progress are tolerated.
func ParseTask(raw json.RawMessage) (*TaskStatus, error) {
	var b taskBody
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, eris.Wrap(err, "manus: parse task")
	}

	ts := &TaskStatus{
		ID:       b.ID,
		State:    normalizeState(b.Status, b.TaskStatus),
		Progress: parseProgress(b.Progress),
		Raw:      raw,
	}
	ts.CurrentStep = firstNonEmpty(b.CurrentStep, b.TaskStatus, b.Status)
	ts.Output = assistantText(b.Output)
	if ts.Output == "" && b.Result != nil {
		ts.Output = stringValue(b.Result.Output)
	}
	return ts, nil
}

// normalizeState maps the service's status vocabulary onto State. Either
// field reporting completion counts as completed.
func normalizeState(status, taskStatus string) State {
	s1 := strings.ToLower(strings.TrimSpace(status))
	s2 := strings.ToLower(strings.TrimSpace(taskStatus))
	if s1 == "completed" || s2 == "completed" {
		return StateCompleted
	}
	for _, s := range []string{s1, s2} {
		switch s {
		case "failed", "error", "cancelled", "canceled":
			return StateFailed
		}
	}
	for _, s := range []string{s1, s2} {
		switch s {
		case "pending", "queued", "created":
			return StatePending
		}
	}
	return StateProcessing
}

// assistantText returns the first output_text block of the last assistant
// message that has one.
func assistantText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var msgs []message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return ""
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != "assistant" {
			continue
		}
		for _, c := range msgs[i].Content {
			if c.Type == "output_text" && c.Text != "" {
				return c.Text
			}
		}
	}
	return ""
}

func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

func parseProgress(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")), 64)
	if err != nil {
		return nil
	}
	return &f
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
