// Package report exports analyses to a spreadsheet.
package report

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/expose-cli/internal/model"
	"github.com/sells-group/expose-cli/internal/normalize"
	"github.com/sells-group/expose-cli/pkg/overpass"
)

// Sheet names.
const (
	SheetAnalyses  = "Analyses"
	SheetFindings  = "Findings"
	SheetAmenities = "Amenities"
)

var analysisHeader = []string{
	"ID", "Address", "Status", "Created", "Recommendation", "Property Type",
	"Living Area (sqm)", "Rooms", "Year Built", "Purchase Price (EUR)",
	"Price per sqm (EUR)", "Cold Rent (EUR/month)", "Gross Yield (%)",
	"Summary", "Error",
}

var findingHeader = []string{"ID", "Kind", "Category", "Severity", "Text"}

var amenityHeader = []string{"ID", "Category", "Name", "Type", "Distance (m)", "Lat", "Lon"}

// Write renders analyses as an xlsx workbook to w. Analyses without a
// structured result still get a row on the first sheet.
func Write(w io.Writer, analyses []*model.Analysis) error {
	f, err := Build(analyses)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "report: write xlsx")
}

// Build assembles the workbook.
func Build(analyses []*model.Analysis) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheets := make(map[string]*xlsx.Sheet, 3)
	for _, s := range []struct {
		name   string
		header []string
	}{
		{SheetAnalyses, analysisHeader},
		{SheetFindings, findingHeader},
		{SheetAmenities, amenityHeader},
	} {
		sheet, err := f.AddSheet(s.name)
		if err != nil {
			return nil, eris.Wrapf(err, "report: add sheet %s", s.name)
		}
		addStrings(sheet.AddRow(), s.header...)
		sheets[s.name] = sheet
	}

	for _, a := range analyses {
		if a == nil {
			continue
		}
		r, structured := normalize.Decode(a.Result)
		writeAnalysis(sheets[SheetAnalyses].AddRow(), a, r)
		if structured {
			writeFindings(sheets[SheetFindings], a.ID, r)
		}
		if a.Amenities != nil {
			writeAmenities(sheets[SheetAmenities], a.ID, a.Amenities)
		}
	}
	return f, nil
}

func writeAnalysis(row *xlsx.Row, a *model.Analysis, r *normalize.Report) {
	addStrings(row, a.ID, a.Address, string(a.Status))
	row.AddCell().SetDateTime(a.CreatedAt)
	if r == nil {
		r = &normalize.Report{}
	}
	p, fin := r.Property, r.Financials
	addStrings(row, r.Recommendation, p.Type)
	addFloat(row, p.LivingAreaSqm)
	addFloat(row, p.Rooms)
	if p.YearBuilt != nil {
		row.AddCell().SetInt(*p.YearBuilt)
	} else {
		row.AddCell()
	}
	addFloat(row, fin.PurchasePrice)
	addFloat(row, fin.PricePerSqm)
	addFloat(row, fin.MonthlyRentCold)
	addFloat(row, fin.GrossYieldPercent)
	addStrings(row, r.Summary, a.Error)
}

func writeFindings(sheet *xlsx.Sheet, id string, r *normalize.Report) {
	for _, p := range r.Pros {
		addStrings(sheet.AddRow(), id, "pro", "", "", p)
	}
	for _, c := range r.Cons {
		addStrings(sheet.AddRow(), id, "con", "", "", c)
	}
	for _, risk := range r.Risks {
		addStrings(sheet.AddRow(), id, "risk", risk.Category, strings.ToLower(risk.Severity), risk.Description)
	}
}

func writeAmenities(sheet *xlsx.Sheet, id string, res *overpass.Result) {
	for _, c := range overpass.Categories {
		for _, am := range res.List(c) {
			row := sheet.AddRow()
			addStrings(row, id, string(c), am.Name, am.Type)
			row.AddCell().SetInt(am.Distance)
			row.AddCell().SetFloat(am.Lat)
			row.AddCell().SetFloat(am.Lon)
		}
	}
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addFloat(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloat(*v)
	}
}
