package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/mapdiff/pkg/analysis"
	"github.com/vanderheijden86/mapdiff/pkg/config"
	"github.com/vanderheijden86/mapdiff/pkg/model"
	"github.com/vanderheijden86/mapdiff/pkg/pipeline"
)

// MarkdownOptions controls WriteMarkdown.
type MarkdownOptions struct {
	Title string
	Sort  model.SortState // Row order of the subject table
	// Aligned pads table cells so the raw markdown lines up in a terminal.
	Aligned bool
}

// WriteMarkdown renders a report as a markdown document: a subject table
// with badges and best/worst partitions, then the analysis panel.
func WriteMarkdown(w io.Writer, r *pipeline.Report, opts MarkdownOptions) error {
	var sb strings.Builder

	title := opts.Title
	if title == "" {
		title = "Map comparison"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "- Location: `%s`\n", r.Location)
	fmt.Fprintf(&sb, "- Partition: **%s** vs %s\n", r.PartitionName(r.CurrentPartition), r.Baseline)
	if r.Coverage.Requested > 0 {
		fmt.Fprintf(&sb, "- Coverage: %d/%d partitions\n", r.Coverage.Fetched, r.Coverage.Requested)
	}
	if opts.Sort.Active() {
		fmt.Fprintf(&sb, "- Sorted by: %s\n", opts.Sort)
	}
	if r.Error != "" {
		fmt.Fprintf(&sb, "\n> **Error:** %s\n", r.Error)
	}
	sb.WriteString("\n")

	writeSubjectTable(&sb, r, opts)
	writeAnalysis(&sb, r)

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeSubjectTable(sb *strings.Builder, r *pipeline.Report, opts MarkdownOptions) {
	if len(r.Rows) == 0 {
		return
	}
	header := []string{"Hero", "Win Δ", "Pick Δ", "Best maps", "Worst maps"}
	var rows [][]string
	for _, id := range r.SortedRows(opts.Sort) {
		b := r.Badges[id]
		rp := r.Ranked[id]
		rows = append(rows, []string{
			r.Name(id),
			badgeCell(b.WinRate),
			badgeCell(b.PickRate),
			rankingCell(rp.TopWinRate),
			rankingCell(rp.BottomWinRate),
		})
	}
	writeTable(sb, header, rows, opts.Aligned)
	sb.WriteString("\n")
}

func badgeCell(d *float64) string {
	if d == nil {
		return "–"
	}
	return analysis.FormatDelta(*d)
}

func rankingCell(r analysis.Ranking) string {
	if len(r) == 0 {
		return "–"
	}
	parts := make([]string, len(r))
	for i, e := range r {
		name := e.DisplayName
		if name == "" {
			name = e.PartitionID
		}
		parts[i] = fmt.Sprintf("%s %s", name, analysis.FormatDelta(e.Delta))
	}
	return strings.Join(parts, ", ")
}

// writeTable writes a pipe table. With align, cells are padded to the
// display width of the widest cell in their column.
func writeTable(sb *strings.Builder, header []string, rows [][]string, align bool) {
	widths := make([]int, len(header))
	if align {
		for i, h := range header {
			widths[i] = runewidth.StringWidth(h)
		}
		for _, row := range rows {
			for i, c := range row {
				widths[i] = max(widths[i], runewidth.StringWidth(escapeCell(c)))
			}
		}
	}
	line := func(cells []string) {
		sb.WriteString("|")
		for i, c := range cells {
			c = escapeCell(c)
			if align {
				c = runewidth.FillRight(c, widths[i])
			}
			sb.WriteString(" " + c + " |")
		}
		sb.WriteString("\n")
	}
	line(header)
	sb.WriteString("|")
	for i := range header {
		sb.WriteString(" " + strings.Repeat("-", max(3, widths[i])) + " |")
	}
	sb.WriteString("\n")
	for _, row := range rows {
		line(row)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeAnalysis(sb *strings.Builder, r *pipeline.Report) {
	if r.Traits.Empty() && len(r.Roles) == 0 && len(r.Gains) == 0 && len(r.Losses) == 0 {
		return
	}
	sb.WriteString("## Map analysis\n\n")

	if !r.Traits.Empty() {
		writeTraits(sb, "Favours", r.Traits.Favored)
		writeTraits(sb, "Punishes", r.Traits.Punished)
		sb.WriteString("\n")
	}
	if len(r.Roles) > 0 {
		sb.WriteString("### Roles\n\n")
		for _, role := range r.Roles {
			fmt.Fprintf(sb, "- %s: %s (%d heroes)\n", capitalize(role.Role), analysis.FormatDelta(role.AverageDelta), role.SampleCount)
		}
		sb.WriteString("\n")
	}
	if len(r.Gains) > 0 || len(r.Losses) > 0 {
		sb.WriteString("### Outliers\n\n")
		for _, d := range r.Gains {
			fmt.Fprintf(sb, "- ▲ %s %s\n", r.Name(d.SubjectID), analysis.FormatDelta(d.Delta))
		}
		for _, d := range r.Losses {
			fmt.Fprintf(sb, "- ▼ %s %s\n", r.Name(d.SubjectID), analysis.FormatDelta(d.Delta))
		}
		sb.WriteString("\n")
	}
}

func writeTraits(sb *strings.Builder, label string, aggs []model.TraitAggregate) {
	if len(aggs) == 0 {
		return
	}
	parts := make([]string, len(aggs))
	for i, a := range aggs {
		parts[i] = fmt.Sprintf("%s %s (n=%d)", config.TraitLabel(a.Tag), analysis.FormatDelta(a.AverageDelta), a.SampleCount)
	}
	fmt.Fprintf(sb, "**%s:** %s\n\n", label, strings.Join(parts, ", "))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// AnalysisMarkdown renders only the analysis panel of r. It is empty when
// the report carries no traits, roles or outliers.
func AnalysisMarkdown(r *pipeline.Report) string {
	var sb strings.Builder
	writeAnalysis(&sb, r)
	return sb.String()
}
