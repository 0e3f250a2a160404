// Package ui provides the terminal user interface for mapdiff.
package ui

import (
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/mapdiff/pkg/batch"
	"github.com/vanderheijden86/mapdiff/pkg/debug"
	"github.com/vanderheijden86/mapdiff/pkg/export"
	"github.com/vanderheijden86/mapdiff/pkg/model"
	"github.com/vanderheijden86/mapdiff/pkg/pipeline"
	"github.com/vanderheijden86/mapdiff/pkg/sortstate"
)

// Controller is the part of the run coordinator the UI drives.
// *coordinator.Coordinator satisfies it.
type Controller interface {
	OnDataMutated()
	OnNavigation(location model.FilterContext)
	Location() model.FilterContext
	Generation() uint64
}

// ReportMsg delivers a published report.
type ReportMsg struct {
	Report *pipeline.Report
}

// ProgressMsg delivers a batch progress event for a run.
type ProgressMsg struct {
	Generation uint64
	Progress   batch.Progress
}

const (
	defaultWidth  = 100
	defaultHeight = 30
	maxPanelLines = 12
	nameWidth     = 14
	badgeWidth    = 8
	rankingWidth  = 10 // minimum
)

// Option configures a Model.
type Option func(*Model)

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(m *Model) { m.copy = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithTheme sets the color theme.
func WithTheme(t Theme) Option {
	return func(m *Model) { m.theme = t }
}

// Model is the bubbletea model showing the latest report.
type Model struct {
	ctrl  Controller
	theme Theme
	keys  keyMap
	help  help.Model
	spin  spinner.Model
	bar   progress.Model
	panel viewport.Model

	sort     *sortstate.Controller
	report   *pipeline.Report
	received time.Time
	rows     []string
	cursor   int
	offset   int

	prog    batch.Progress
	progGen uint64

	showPanel  bool
	focusPanel bool
	panelText  string
	md         *glamour.TermRenderer
	mdWidth    int

	width  int
	height int
	status string

	copy func(string) error
	now  func() time.Time
}

// NewModel returns a model that drives ctrl.
func NewModel(ctrl Controller, opts ...Option) Model {
	m := Model{
		ctrl:      ctrl,
		theme:     DefaultTheme(lipgloss.DefaultRenderer()),
		keys:      defaultKeyMap(),
		help:      help.New(),
		spin:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(20), progress.WithoutPercentage()),
		panel:     viewport.New(defaultWidth-4, maxPanelLines),
		sort:      &sortstate.Controller{},
		showPanel: true,
		width:     defaultWidth,
		height:    defaultHeight,
		copy:      clipboard.WriteAll,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.spin.Style = m.theme.StatusText
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case ReportMsg:
		m.setReport(msg.Report)
		return m, nil

	case ProgressMsg:
		if msg.Generation >= m.progGen {
			m.progGen = msg.Generation
			m.prog = msg.Progress
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Focus):
		if m.panelVisible() {
			m.focusPanel = !m.focusPanel
		}
		return m, nil
	}

	if m.focusPanel {
		var cmd tea.Cmd
		m.panel, cmd = m.panel.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.SortWin):
		m.toggleSort(model.SortWinRate)
	case key.Matches(msg, m.keys.SortPick):
		m.toggleSort(model.SortPickRate)
	case key.Matches(msg, m.keys.Refresh):
		m.ctrl.OnDataMutated()
		m.status = "Refreshing…"
	case key.Matches(msg, m.keys.PrevPart):
		m.stepPartition(-1)
	case key.Matches(msg, m.keys.NextPart):
		m.stepPartition(1)
	case key.Matches(msg, m.keys.Baseline):
		if m.report != nil {
			m.navigate(m.report.Baseline)
		}
	case key.Matches(msg, m.keys.OpenBest):
		m.openBest()
	case key.Matches(msg, m.keys.Panel):
		m.showPanel = !m.showPanel
		if !m.showPanel {
			m.focusPanel = false
		}
	case key.Matches(msg, m.keys.Copy):
		m.copyMarkdown()
	}
	return m, nil
}

// Report returns the report on screen, or nil before the first one.
func (m Model) Report() *pipeline.Report {
	return m.report
}

// Rows returns the subject IDs in display order.
func (m Model) Rows() []string {
	return m.rows
}

// SortState returns the active diff sort.
func (m Model) SortState() model.SortState {
	return m.sort.State()
}

// Status returns the transient status line.
func (m Model) Status() string {
	return m.status
}

// Selected returns the subject ID under the cursor.
func (m Model) Selected() string {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return ""
	}
	return m.rows[m.cursor]
}

// Pending reports whether a run newer than the displayed report exists.
func (m Model) Pending() bool {
	if m.report == nil {
		return true
	}
	return m.ctrl.Generation() > m.report.Generation
}

func (m *Model) setReport(r *pipeline.Report) {
	if r == nil {
		return
	}
	if m.report != nil && r.Generation < m.report.Generation {
		return
	}
	selected := m.Selected()

	m.report = r
	m.received = m.now()
	m.sort.Reset()
	m.rows = slices.Clone(r.Rows)
	m.status = ""
	m.cursor = max(0, slices.Index(m.rows, selected))
	m.renderPanel()
	m.clampCursor()
	debug.Log("ui: showing report gen=%d rows=%d", r.Generation, len(r.Rows))
}

func (m *Model) sortable() bool {
	return m.report != nil && m.report.Deltas != nil && !m.report.OnBaseline()
}

func (m *Model) toggleSort(k model.SortKey) {
	if !m.sortable() {
		return
	}
	selected := m.Selected()
	m.sort.Toggle(k)
	m.rows = m.sort.Apply(m.report.Rows, m.report.Deltas)
	if i := slices.Index(m.rows, selected); i >= 0 {
		m.cursor = i
	}
	m.clampCursor()
}

func (m *Model) moveCursor(d int) {
	m.cursor += d
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	visible := m.tableRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if visible > 0 && m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

func (m *Model) stepPartition(d int) {
	if m.report == nil || len(m.report.Partitions) == 0 {
		return
	}
	parts := m.report.Partitions
	i := slices.IndexFunc(parts, func(p model.Partition) bool { return p.ID == m.report.CurrentPartition })
	switch {
	case i < 0 && d > 0:
		i = 0
	case i < 0:
		i = len(parts) - 1
	default:
		i = (i + d + len(parts)) % len(parts)
	}
	m.navigate(parts[i].ID)
}

// openBest navigates to the selected subject's top-ranked partition.
func (m *Model) openBest() {
	if m.report == nil {
		return
	}
	ranked := m.report.Ranked[m.Selected()]
	switch {
	case len(ranked.TopWinRate) > 0:
		m.navigate(ranked.TopWinRate[0].PartitionID)
	case len(ranked.TopPickRate) > 0:
		m.navigate(ranked.TopPickRate[0].PartitionID)
	}
}

func (m *Model) navigate(partition string) {
	if m.report == nil || partition == "" || partition == m.report.CurrentPartition {
		return
	}
	m.ctrl.OnNavigation(m.ctrl.Location().WithPartition(partition))
	m.status = "Loading " + m.report.PartitionName(partition) + "…"
}

func (m *Model) copyMarkdown() {
	if m.report == nil {
		return
	}
	var sb strings.Builder
	if err := export.WriteMarkdown(&sb, m.report, export.MarkdownOptions{Sort: m.sort.State()}); err != nil {
		m.status = "Export error: " + err.Error()
		return
	}
	if err := m.copy(sb.String()); err != nil {
		m.status = "Clipboard error: " + err.Error()
		return
	}
	m.status = "📋 Copied report to clipboard"
}

func (m *Model) panelVisible() bool {
	return m.showPanel && m.panelText != ""
}

// panelWidth is the bordered panel's width; the viewport sits inside its
// padding.
func (m *Model) panelWidth() int {
	return max(20, m.width-2)
}

func (m *Model) panelInner() int {
	return m.panelWidth() - 2
}

func (m *Model) panelHeight() int {
	if !m.panelVisible() {
		return 0
	}
	return min(maxPanelLines, max(3, m.height/3))
}

// tableRows is the number of subject rows that fit on screen.
func (m *Model) tableRows() int {
	const chrome = 4 // header, column titles, status, help
	h := m.height - chrome
	if ph := m.panelHeight(); ph > 0 {
		h -= ph + 2
	}
	return max(1, h)
}

func (m *Model) resize() {
	m.panel.Width = m.panelInner()
	m.panel.Height = max(1, m.panelHeight())
	m.renderPanel()
	m.clampCursor()
}

func (m *Model) renderPanel() {
	m.panelText = ""
	if m.report == nil {
		m.panel.SetContent("")
		return
	}
	src := export.AnalysisMarkdown(m.report)
	if src == "" {
		m.panel.SetContent("")
		return
	}
	m.panelText = src

	out := src
	if r := m.renderer(); r != nil {
		if rendered, err := r.Render(src); err == nil {
			out = strings.TrimRight(rendered, "\n ")
		}
	}
	m.panel.Width = m.panelInner()
	m.panel.Height = max(1, m.panelHeight())
	m.panel.SetContent(out)
	m.panel.GotoTop()
}

func (m *Model) renderer() *glamour.TermRenderer {
	w := max(10, m.panelInner()-4) // glamour's document margin
	if m.md != nil && m.mdWidth == w {
		return m.md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(w),
	)
	if err != nil {
		debug.Log("ui: glamour renderer: %v", err)
		return nil
	}
	m.md, m.mdWidth = r, w
	return r
}
