package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/mapdiff/pkg/model"
)

type column struct {
	title string
	width int
	right bool
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.report == nil {
		b.WriteString(m.spin.View() + " Loading snapshots…\n")
		b.WriteString(m.renderFooter())
		return b.String()
	}

	if m.report.Error != "" {
		b.WriteString(m.theme.ErrorText.Render("⚠ "+m.report.Error) + "\n")
	}
	if m.report.OnBaseline() && len(m.rows) > 0 {
		b.WriteString(m.theme.MutedText.Render("Showing all maps. Pick a map with [ or ] to compare.") + "\n")
	}

	b.WriteString(m.renderTable())

	if m.panelVisible() {
		border := m.theme.Panel
		if m.focusPanel {
			border = border.BorderForeground(m.theme.Primary)
		}
		b.WriteString(border.Width(m.panelWidth()).Render(m.panel.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.theme.Header.Render("mapdiff")

	var left string
	if r := m.report; r != nil {
		left = fmt.Sprintf(" %s vs %s", r.PartitionName(r.CurrentPartition), r.PartitionName(r.Baseline))
	}

	var right string
	switch {
	case m.Pending():
		right = m.spin.View() + " " + m.renderProgress()
	case m.report != nil:
		right = m.theme.MutedText.Render("updated " + FormatTimeRel(m.received, m.now()))
		if c := m.report.Coverage; !c.Complete() {
			right = m.theme.NegativeText.Render(fmt.Sprintf("%d/%d maps", c.Fetched, c.Requested)) + "  " + right
		}
	}

	used := lipgloss.Width(title) + lipgloss.Width(left) + lipgloss.Width(right)
	gap := max(1, m.width-used)
	return title + left + strings.Repeat(" ", gap) + right
}

func (m Model) renderProgress() string {
	if m.progGen == 0 || m.progGen != m.ctrl.Generation() || m.prog.Total == 0 {
		return m.theme.StatusText.Render("running")
	}
	return m.bar.ViewAs(m.prog.Fraction()) + " " +
		m.theme.MutedText.Render(fmt.Sprintf("%d/%d maps", m.prog.Done, m.prog.Total))
}

func (m Model) columns() []column {
	r := m.report
	cols := []column{{title: "Hero", width: nameWidth}}
	used := 2 + nameWidth

	if r.Badges != nil {
		state := m.sort.State()
		cols = append(cols,
			column{title: "Win Δ" + sortIndicator(state, model.SortWinRate), width: badgeWidth, right: true},
			column{title: "Pick Δ" + sortIndicator(state, model.SortPickRate), width: badgeWidth, right: true},
		)
		used += 2 * (badgeWidth + 1)
	}
	if len(r.Ranked) > 0 {
		w := max(rankingWidth, (m.width-used-2)/2)
		cols = append(cols,
			column{title: "Best maps", width: w},
			column{title: "Worst maps", width: w},
		)
	}
	return cols
}

func sortIndicator(s model.SortState, k model.SortKey) string {
	if s.Key != k {
		return ""
	}
	if s.Direction == model.SortAsc {
		return " ▲"
	}
	return " ▼"
}

func (m Model) renderTable() string {
	if len(m.rows) == 0 {
		return m.theme.MutedText.Render("No subjects on this page.") + "\n"
	}
	cols := m.columns()

	var b strings.Builder
	titles := make([]string, len(cols))
	for i, c := range cols {
		titles[i] = m.theme.Column.Render(align(c.title, c))
	}
	b.WriteString("  " + strings.Join(titles, " ") + "\n")

	end := min(len(m.rows), m.offset+m.tableRows())
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(m.rows[i], cols, i == m.cursor))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderRow(id string, cols []column, selected bool) string {
	r := m.report
	badge, hasBadge := r.Badges[id]
	ranked := r.Ranked[id]

	cells := make([]string, 0, len(cols))
	name := align(r.Name(id), cols[0])
	if selected {
		name = m.theme.Selected.Render(name)
	} else {
		name = m.theme.Base.Render(name)
	}
	cells = append(cells, name)

	next := 1
	if r.Badges != nil {
		for _, d := range []*float64{badge.WinRate, badge.PickRate} {
			text := "–"
			style := m.theme.NeutralText
			if hasBadge {
				text = badgeText(d)
				style = m.theme.BadgeStyle(badgeClass(d))
			}
			cells = append(cells, style.Render(align(text, cols[next])))
			next++
		}
	}
	if len(r.Ranked) > 0 {
		best, worst := ranked.TopWinRate, ranked.BottomWinRate
		if len(best) == 0 && len(worst) == 0 {
			best, worst = ranked.TopPickRate, ranked.BottomPickRate
		}
		cells = append(cells,
			m.theme.PositiveText.Render(align(joinRanking(best), cols[next])),
			m.theme.NegativeText.Render(align(joinRanking(worst), cols[next+1])),
		)
	}

	prefix := "  "
	if selected {
		prefix = m.theme.SortActive.Render("▸") + " "
	}
	return prefix + strings.Join(cells, " ")
}

func align(s string, c column) string {
	if c.right {
		return padLeft(s, c.width)
	}
	return padRight(s, c.width)
}

func (m Model) renderFooter() string {
	var status string
	switch {
	case m.status != "":
		status = m.theme.StatusText.Render(truncate(m.status, m.width))
	case m.report != nil && m.sort.State().Active():
		status = m.theme.MutedText.Render("sorted by " + m.sort.State().String())
	}
	return status + "\n" + m.help.View(m.keys)
}
