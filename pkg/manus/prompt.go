package manus

import (
	"fmt"
	"strings"
	"time"
)

// PromptContext is the per-task input woven into the analysis prompt.
type PromptContext struct {
	Address string
	// News is recent local coverage; the block is omitted when empty.
	News []Headline
}

// Headline is a news item as shown to the analysis engine.
type Headline struct {
	Title       string
	PublishedAt time.Time
	Sentiment   string
}

const maxPromptHeadlines = 10

const basePrompt = `Analysiere dieses deutsche Immobilien-Exposé (PDF) als mögliches Investment.

Antworte AUSSCHLIESSLICH mit einem einzigen JSON-Objekt (ohne Einleitung, ohne Markdown) nach diesem Schema:

{
  "property": {
    "address": "Straße Hausnummer, PLZ Ort oder null",
    "type": "Wohnung | Haus | Mehrfamilienhaus | Gewerbe | Grundstück",
    "living_area_sqm": Zahl oder null,
    "plot_area_sqm": Zahl oder null,
    "rooms": Zahl oder null,
    "year_built": Zahl oder null,
    "condition": "Text oder null",
    "energy_class": "Text oder null"
  },
  "financials": {
    "purchase_price": Zahl oder null,
    "price_per_sqm": Zahl oder null,
    "additional_costs": Zahl oder null,
    "monthly_rent_cold": Zahl oder null,
    "annual_rent": Zahl oder null,
    "gross_yield_percent": Zahl oder null,
    "house_money_monthly": Zahl oder null
  },
  "pros": ["maximal 5 Punkte"],
  "cons": ["maximal 5 Punkte"],
  "risks": [
    {"category": "Sanierung | Mietrecht | Lage | Finanzierung | Rechtlich | Sonstiges", "description": "Text", "severity": "low | medium | high"}
  ],
  "summary": "2-4 Sätze Gesamteinschätzung",
  "recommendation": "buy | consider | avoid"
}

Alle Texte auf Deutsch. Unbekannte Werte als null.`

// BuildPrompt renders the analysis prompt with the fixed result schema and,
// when available, the address and a block of local headlines.
func BuildPrompt(pc PromptContext) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if addr := strings.TrimSpace(pc.Address); addr != "" {
		fmt.Fprintf(&b, "\n\nBekannte Adresse der Immobilie: %s", addr)
	}

	if len(pc.News) > 0 {
		b.WriteString("\n\nAktuelle Nachrichten aus der Umgebung (berücksichtige sie bei den Lage-Risiken):\n")
		for i, h := range pc.News {
			if i == maxPromptHeadlines {
				break
			}
			date := "unbekannt"
			if !h.PublishedAt.IsZero() {
				date = h.PublishedAt.Format("2006-01-02")
			}
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", date, h.Title, h.Sentiment)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
