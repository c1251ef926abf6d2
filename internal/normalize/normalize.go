// Package normalize turns free-form task output into the canonical analysis
// result, degrading to a legacy summary wrapper when the output is not a
// JSON object.
package normalize

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Outcome is the normalized result. Structured is false for the legacy shape.
type Outcome struct {
	Result     json.RawMessage
	Structured bool
}

// Legacy is the fallback shape for output that is not a JSON object.
type Legacy struct {
	Summary string          `json:"summary"`
	Raw     json.RawMessage `json:"raw"`
}

// Normalize parses text, optionally wrapped in a markdown code fence, into a
// compact JSON object. Anything else is wrapped as Legacy with payload as
// raw (null if payload is not valid JSON). It never fails.
func Normalize(text string, payload json.RawMessage) Outcome {
	candidate := StripFence(text)
	if len(candidate) > 0 && candidate[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
			var buf bytes.Buffer
			if err := json.Compact(&buf, []byte(candidate)); err == nil {
				return Outcome{Result: buf.Bytes(), Structured: true}
			}
		}
	}

	raw := json.RawMessage("null")
	if len(payload) > 0 && json.Valid(payload) {
		raw = payload
	}
	// Marshal of a string and a valid RawMessage cannot fail.
	b, _ := json.Marshal(Legacy{Summary: text, Raw: raw})
	return Outcome{Result: b}
}

// StripFence trims text and removes a leading ```json or ``` line marker and
// a trailing ``` marker.
func StripFence(text string) string {
	s := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	default:
		return s
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// IsLegacy reports whether result has the fallback {summary, raw} shape.
func IsLegacy(result json.RawMessage) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(result, &probe); err != nil {
		return false
	}
	if len(probe) != 2 {
		return false
	}
	_, hasSummary := probe["summary"]
	_, hasRaw := probe["raw"]
	return hasSummary && hasRaw
}
