package stability

import (
	"fmt"
	"slices"
	"strings"

	"squadutils/internal/format"
	"squadutils/internal/squad"
)

// Render formats the table followed by the suite summary. color only
// applies to ASCII output.
func (t *Table) Render(mode format.Mode, color bool) string {
	if len(t.Rows) == 0 {
		return "*** No tests available ***\n"
	}
	paint := func(s string, ratio float64) string {
		if !color || mode != format.ASCII {
			return s
		}
		if ratio < 0 {
			return format.Paint(s, format.Red)
		}
		return format.Paint(s, format.RatioColor(ratio))
	}

	tests := format.NewTable(mode)
	header := []string{"Suite", "Test"}
	if len(t.Environments) > 0 {
		header = append(header, t.Environments...)
	} else {
		header = append(header, "Stable")
	}
	tests.Header(header...)
	prev := ""
	for i, r := range t.Rows {
		if i > 0 && r.Suite != prev {
			tests.Separator()
		}
		prev = r.Suite
		vals := []any{r.Suite, r.Test}
		for _, n := range r.Cells {
			vals = append(vals, paint(format.Percent(n), n))
		}
		tests.Row(vals...)
	}
	cfgs := make([]format.ColumnConfig, 0, len(header)-2)
	for i := 3; i <= len(header); i++ {
		cfgs = append(cfgs, format.ColumnConfig{Number: i, Align: format.AlignCenter})
	}
	tests.Columns(cfgs...)

	summary := format.NewTable(mode)
	summary.Title("Suite summary")
	summary.Header("Suite", "Stable")
	for _, s := range t.Suites {
		summary.Row(s.Suite, paint(format.Percent(s.Ratio), s.Ratio))
	}

	return tests.String() + "\n\n" + summary.String() + "\n"
}

// RenderRuns formats SuiteRuns output: one status summary and one test
// listing per build.
func RenderRuns(runs []ProjectRuns, mode format.Mode) string {
	var b strings.Builder
	for _, pr := range runs {
		if len(pr.Builds) == 0 {
			fmt.Fprintf(&b, "- %s\n", pr.Project.Slug)
			continue
		}
		for _, br := range pr.Builds {
			if len(br.Summary) == 0 {
				continue
			}
			statuses := []string{squad.StatusPass, squad.StatusFail, squad.StatusSkip, squad.StatusXFail}
			for _, env := range br.Environments() {
				for st := range br.Summary[env] {
					if !slices.Contains(statuses, st) {
						statuses = append(statuses, st)
					}
				}
			}

			summary := format.NewTable(mode)
			summary.Title(pr.Project.Slug + " " + br.Build.Version)
			summary.Header(append([]string{"Environment"}, statuses...)...)
			for _, env := range br.Environments() {
				row := []any{env}
				for _, st := range statuses {
					row = append(row, br.Summary[env][st])
				}
				summary.Row(row...)
			}
			b.WriteString(summary.String())
			b.WriteString("\n\n")

			list := format.NewTable(mode)
			list.Header("Environment", "Test", "Status")
			for _, env := range br.Environments() {
				for _, ts := range br.Tests[env] {
					list.Row(env, ts.Name, ts.Status)
				}
			}
			b.WriteString(list.String())
			b.WriteString("\n\n")
		}
	}
	return b.String()
}
