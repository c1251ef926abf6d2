package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	payload := json.RawMessage(`{"id":"task_1","status":"completed"}`)

	tests := []struct {
		name       string
		text       string
		want       string
		structured bool
	}{
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"fenced plain", "```\n{\"a\": 1}\n```", `{"a":1}`, true},
		{"unfenced", `{"a":1}`, `{"a":1}`, true},
		{"surrounding whitespace", "\n\n  {\n  \"a\": [1, 2]\n}\n ", `{"a":[1,2]}`, true},
		{"prose", "not json at all", `{"summary":"not json at all","raw":{"id":"task_1","status":"completed"}}`, false},
		{"array is not an object", `[1,2,3]`, `{"summary":"[1,2,3]","raw":{"id":"task_1","status":"completed"}}`, false},
		{"broken json", "```json\n{\"a\":\n```", "{\"summary\":\"```json\\n{\\\"a\\\":\\n```\",\"raw\":{\"id\":\"task_1\",\"status\":\"completed\"}}", false},
		{"prose before json", "Hier ist das Ergebnis: {\"a\":1}", `{"summary":"Hier ist das Ergebnis: {\"a\":1}","raw":{"id":"task_1","status":"completed"}}`, false},
		{"empty", "", `{"summary":"","raw":{"id":"task_1","status":"completed"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.text, payload)
			assert.Equal(t, tt.structured, got.Structured)
			assert.JSONEq(t, tt.want, string(got.Result))
			assert.Equal(t, !tt.structured, IsLegacy(got.Result))
		})
	}
}

func TestNormalize_InvalidPayloadBecomesNull(t *testing.T) {
	got := Normalize("plain", json.RawMessage(`{broken`))
	assert.JSONEq(t, `{"summary":"plain","raw":null}`, string(got.Result))

	got = Normalize("plain", nil)
	assert.JSONEq(t, `{"summary":"plain","raw":null}`, string(got.Result))
}

func TestNormalize_AlwaysValidJSON(t *testing.T) {
	for _, text := range []string{"", "```", "```json", "{", "}", "\x00", "null", `"str"`} {
		got := Normalize(text, nil)
		require.True(t, json.Valid(got.Result), "input %q", text)
		assert.NotEqual(t, "null", string(got.Result))
	}
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFence("```json{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripFence("  ```\n{\"a\":1}\n```  "))
	assert.Equal(t, `{"a":1}`, StripFence("```json\n{\"a\":1}"))
	assert.Equal(t, "text ```", StripFence("text ```"))
}

func TestIsLegacy(t *testing.T) {
	assert.True(t, IsLegacy(json.RawMessage(`{"summary":"x","raw":null}`)))
	assert.False(t, IsLegacy(json.RawMessage(`{"summary":"x","raw":null,"pros":[]}`)))
	assert.False(t, IsLegacy(json.RawMessage(`{"summary":"x"}`)))
	assert.False(t, IsLegacy(json.RawMessage(`[]`)))
}
