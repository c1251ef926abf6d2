package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sells-group/expose-cli/internal/analysis"
	"github.com/sells-group/expose-cli/internal/model"
	"github.com/sells-group/expose-cli/internal/normalize"
)

// formatAnalysesList writes a tabular list of analyses to w.
func formatAnalysesList(out io.Writer, list []model.AnalysisSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tADDRESS\tCREATED")
	for _, a := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			a.ID, a.Status, truncate(orDash(a.Address), 48), a.CreatedAt.Local().Format(time.DateTime))
	}
	_ = w.Flush()
}

// formatAnalysis writes a readable summary of one analysis.
func formatAnalysis(out io.Writer, a *model.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "ID:\t%s\n", a.ID)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", a.Status)
	_, _ = fmt.Fprintf(w, "Address:\t%s\n", orDash(a.Address))
	_, _ = fmt.Fprintf(w, "File:\t%s (%d bytes)\n", a.Document.Filename, len(a.Document.Data))
	if a.ExternalTaskID != "" {
		_, _ = fmt.Fprintf(w, "Task:\t%s\n", a.ExternalTaskID)
	}
	if a.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", a.Error)
	}
	if nb := a.Neighborhood; nb != nil {
		_, _ = fmt.Fprintf(w, "Location:\t%s\n", strings.TrimSpace(nb.Postcode+" "+nb.City))
		_, _ = fmt.Fprintf(w, "News:\t%d articles\n", len(nb.News))
	}
	if a.Amenities != nil {
		s := a.Amenities.Summary()
		_, _ = fmt.Fprintf(w, "Amenities:\t%d found\n", a.Amenities.Total())
		_, _ = fmt.Fprintf(w, "Nearest school:\t%s\n", meters(s.NearestSchool))
		_, _ = fmt.Fprintf(w, "Nearest grocery:\t%s\n", meters(s.NearestGrocery))
		_, _ = fmt.Fprintf(w, "Nearest transport:\t%s\n", meters(s.NearestTransport))
	}
	if r, structured := normalize.Decode(a.Result); r != nil {
		if structured && r.Recommendation != "" {
			_, _ = fmt.Fprintf(w, "Recommendation:\t%s\n", r.Recommendation)
		}
		if structured && r.Financials.PurchasePrice != nil {
			_, _ = fmt.Fprintf(w, "Price:\t%.0f EUR\n", *r.Financials.PurchasePrice)
		}
		if r.Summary != "" {
			_, _ = fmt.Fprintf(w, "Summary:\t%s\n", truncate(r.Summary, 200))
		}
	}
	_ = w.Flush()
}

func formatStartResult(out io.Writer, res *analysis.StartResult) {
	_, _ = fmt.Fprintf(out, "Status: %s\n", res.Status)
	if res.TaskID != "" {
		_, _ = fmt.Fprintf(out, "Task:   %s\n", res.TaskID)
	}
	if res.TaskURL != "" {
		_, _ = fmt.Fprintf(out, "Watch:  %s\n", res.TaskURL)
	}
}

func formatProgress(out io.Writer, p *analysis.PollResult) {
	line := string(p.Status)
	if p.Progress != nil {
		line += fmt.Sprintf(" %.0f%%", *p.Progress)
	}
	if p.CurrentStep != "" {
		line += " - " + p.CurrentStep
	}
	if p.Error != "" {
		line += " (" + p.Error + ")"
	}
	_, _ = fmt.Fprintln(out, line)
}

func meters(d *int) string {
	if d == nil {
		return "-"
	}
	if *d >= 1000 {
		return fmt.Sprintf("%.1f km", float64(*d)/1000)
	}
	return fmt.Sprintf("%d m", *d)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
