package normalize

import (
	"encoding/json"
	"strings"
)

// Report is a typed view of the canonical result schema requested from the
// analysis engine. Every field is optional; engines drift.
type Report struct {
	Property       Property   `json:"property"`
	Financials     Financials `json:"financials"`
	Pros           []string   `json:"pros"`
	Cons           []string   `json:"cons"`
	Risks          []Risk     `json:"risks"`
	Summary        string     `json:"summary"`
	Recommendation string     `json:"recommendation"`
}

// Property describes the listed object.
type Property struct {
	Address       string   `json:"address"`
	Type          string   `json:"type"`
	LivingAreaSqm *float64 `json:"living_area_sqm"`
	PlotAreaSqm   *float64 `json:"plot_area_sqm"`
	Rooms         *float64 `json:"rooms"`
	YearBuilt     *int     `json:"year_built"`
	Condition     string   `json:"condition"`
	EnergyClass   string   `json:"energy_class"`
}

// Financials holds the extracted money figures in EUR.
type Financials struct {
	PurchasePrice     *float64 `json:"purchase_price"`
	PricePerSqm       *float64 `json:"price_per_sqm"`
	AdditionalCosts   *float64 `json:"additional_costs"`
	MonthlyRentCold   *float64 `json:"monthly_rent_cold"`
	AnnualRent        *float64 `json:"annual_rent"`
	GrossYieldPercent *float64 `json:"gross_yield_percent"`
	HouseMoneyMonthly *float64 `json:"house_money_monthly"`
}

// Risk is one categorized risk.
type Risk struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Recommendation values.
const (
	RecommendationBuy      = "buy"
	RecommendationConsider = "consider"
	RecommendationAvoid    = "avoid"
)

// Decode returns the typed view of a stored result. For the legacy shape
// only Summary is filled and ok is false. Fields with unexpected types are
// left empty rather than failing the whole decode.
func Decode(result json.RawMessage) (r *Report, ok bool) {
	if len(result) == 0 {
		return nil, false
	}
	if IsLegacy(result) {
		var l Legacy
		_ = json.Unmarshal(result, &l)
		return &Report{Summary: l.Summary}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(result, &fields); err != nil {
		return nil, false
	}
	prop := object(fields, "property")
	fin := object(fields, "financials")
	r = &Report{
		Property: Property{
			Address:       field[string](prop, "address"),
			Type:          field[string](prop, "type"),
			LivingAreaSqm: field[*float64](prop, "living_area_sqm"),
			PlotAreaSqm:   field[*float64](prop, "plot_area_sqm"),
			Rooms:         field[*float64](prop, "rooms"),
			YearBuilt:     field[*int](prop, "year_built"),
			Condition:     field[string](prop, "condition"),
			EnergyClass:   field[string](prop, "energy_class"),
		},
		Financials: Financials{
			PurchasePrice:     field[*float64](fin, "purchase_price"),
			PricePerSqm:       field[*float64](fin, "price_per_sqm"),
			AdditionalCosts:   field[*float64](fin, "additional_costs"),
			MonthlyRentCold:   field[*float64](fin, "monthly_rent_cold"),
			AnnualRent:        field[*float64](fin, "annual_rent"),
			GrossYieldPercent: field[*float64](fin, "gross_yield_percent"),
			HouseMoneyMonthly: field[*float64](fin, "house_money_monthly"),
		},
		Pros:           field[[]string](fields, "pros"),
		Cons:           field[[]string](fields, "cons"),
		Risks:          field[[]Risk](fields, "risks"),
		Summary:        field[string](fields, "summary"),
		Recommendation: strings.ToLower(strings.TrimSpace(field[string](fields, "recommendation"))),
	}
	return r, true
}

// object returns the members of a nested object, or nil when key is
// missing or not an object.
func object(fields map[string]json.RawMessage, key string) map[string]json.RawMessage {
	return field[map[string]json.RawMessage](fields, key)
}

// field decodes one member. json.Unmarshal may leave a partly filled value
// behind on a type mismatch, so any error yields the zero value.
func field[T any](fields map[string]json.RawMessage, key string) T {
	var v T
	raw, ok := fields[key]
	if !ok {
		return v
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero
	}
	return v
}
