// Package translate converts analysis results between German and English.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/expose-cli/internal/normalize"
	"github.com/sells-group/expose-cli/pkg/anthropic"
)

// Language is a supported target language.
type Language string

const (
	English Language = "en"
	German  Language = "de"
)

var (
	ErrNotConfigured = eris.New("translate: no api key configured")
	ErrLanguage      = eris.New(`translate: target language must be "en" or "de"`)
	ErrEmpty         = eris.New("translate: nothing to translate")
	ErrNoOutput      = eris.New("translate: empty response")
)

// ParseLanguage validates a target language code.
func ParseLanguage(s string) (Language, error) {
	switch l := Language(strings.ToLower(strings.TrimSpace(s))); l {
	case English, German:
		return l, nil
	}
	return "", eris.Wrapf(ErrLanguage, "got %q", s)
}

func (l Language) name() string {
	if l == English {
		return "English"
	}
	return "German"
}

func (l Language) source() Language {
	if l == English {
		return German
	}
	return English
}

const systemPrompt = `You are a professional translator specializing in real estate and financial documents. Translate the following JSON content from %s to %s.

RULES:
1. Preserve the JSON structure exactly; translate string values only.
2. Keep all keys in their original form.
3. Keep numbers, dates and technical terms accurate.
4. Use professional real estate terminology.
5. Return ONLY the translated JSON, without explanations or markdown.`

const maxTokens = 4096

// Translator translates texts with a language model.
type Translator struct {
	client anthropic.Client
	model  string
}

// New returns a Translator. A nil client makes every call fail with
// ErrNotConfigured.
func New(client anthropic.Client, model string) *Translator {
	return &Translator{client: client, model: model}
}

// Configured reports whether a client is present.
func (t *Translator) Configured() bool {
	return t != nil && t.client != nil
}

// Text translates text, typically a JSON document, into target.
func (t *Translator) Text(ctx context.Context, text string, target Language) (string, error) {
	if !t.Configured() {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmpty
	}
	if target != English && target != German {
		return "", ErrLanguage
	}

	temp := 0.3
	resp, err := t.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       t.model,
		MaxTokens:   maxTokens,
		System:      fmt.Sprintf(systemPrompt, target.source().name(), target.name()),
		Messages:    []anthropic.Message{{Role: "user", Content: text}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "translate")
	}
	resp.Usage.LogCost(resp.Model, "translate")

	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", ErrNoOutput
	}
	return out, nil
}

// Result translates a stored analysis result and returns it as JSON. Output
// that does not parse as a JSON object is returned in the legacy shape.
func (t *Translator) Result(ctx context.Context, result json.RawMessage, target Language) (json.RawMessage, error) {
	out, err := t.Text(ctx, string(result), target)
	if err != nil {
		return nil, err
	}
	return normalize.Normalize(out, nil).Result, nil
}
