package manus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTask_AssistantOutput(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "task_1",
		"status": "running",
		"task_status": "completed",
		"output": [
			{"role": "user", "content": [{"type": "input_text", "text": "prompt"}]},
			{"role": "assistant", "content": [{"type": "output_text", "text": "first draft"}]},
			{"role": "assistant", "content": [{"type": "output_file", "url": "x"}, {"type": "output_text", "text": "{\"summary\":\"ok\"}"}]},
			{"role": "assistant", "content": [{"type": "output_file", "url": "y"}]}
		]
	}`)

	ts, err := ParseTask(raw)
	require.NoError(t, err)
	assert.Equal(t, "task_1", ts.ID)
	assert.Equal(t, StateCompleted, ts.State)
	assert.Equal(t, `{"summary":"ok"}`, ts.Output)
	assert.Equal(t, "completed", ts.CurrentStep)
	assert.JSONEq(t, string(raw), string(ts.Raw))
}

func TestParseTask_ResultOutputFallback(t *testing.T) {
	ts, err := ParseTask(json.RawMessage(`{"id":"t","status":"completed","result":{"output":"Kurzfassung"}}`))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, ts.State)
	assert.Equal(t, "Kurzfassung", ts.Output)
}

func TestParseTask_OutputNotArray(t *testing.T) {
	ts, err := ParseTask(json.RawMessage(`{"id":"t","status":"completed","output":"plain"}`))
	require.NoError(t, err)
	assert.Equal(t, "", ts.Output)
}

func TestParseTask_Progress(t *testing.T) {
	tests := []struct {
		body string
		want *float64
	}{
		{`{"status":"running","progress":42.5}`, ptr(42.5)},
		{`{"status":"running","progress":"60%"}`, ptr(60)},
		{`{"status":"running","progress":"0.3"}`, ptr(0.3)},
		{`{"status":"running","progress":"halfway"}`, nil},
		{`{"status":"running","progress":null}`, nil},
		{`{"status":"running"}`, nil},
	}
	for _, tt := range tests {
		ts, err := ParseTask(json.RawMessage(tt.body))
		require.NoError(t, err)
		if tt.want == nil {
			assert.Nil(t, ts.Progress, tt.body)
			continue
		}
		require.NotNil(t, ts.Progress, tt.body)
		assert.InDelta(t, *tt.want, *ts.Progress, 1e-9)
	}
}

func TestParseTask_CurrentStep(t *testing.T) {
	ts, err := ParseTask(json.RawMessage(`{"status":"running","task_status":"thinking","current_step":"Lese Seite 3"}`))
	require.NoError(t, err)
	assert.Equal(t, "Lese Seite 3", ts.CurrentStep)

	ts, err = ParseTask(json.RawMessage(`{"status":"running"}`))
	require.NoError(t, err)
	assert.Equal(t, "running", ts.CurrentStep)
}

func TestParseTask_Malformed(t *testing.T) {
	_, err := ParseTask(json.RawMessage(`[`))
	require.Error(t, err)
}

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		status, taskStatus string
		want               State
	}{
		{"completed", "", StateCompleted},
		{"running", "completed", StateCompleted},
		{"Failed", "", StateFailed},
		{"", "error", StateFailed},
		{"cancelled", "", StateFailed},
		{"queued", "", StatePending},
		{"created", "", StatePending},
		{"running", "", StateProcessing},
		{"", "", StateProcessing},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeState(tt.status, tt.taskStatus), "%q/%q", tt.status, tt.taskStatus)
	}
}

func ptr(f float64) *float64 { return &f }
