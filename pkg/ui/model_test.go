package ui

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/mapdiff/pkg/analysis"
	"github.com/vanderheijden86/mapdiff/pkg/batch"
	"github.com/vanderheijden86/mapdiff/pkg/model"
	"github.com/vanderheijden86/mapdiff/pkg/pipeline"
	"github.com/vanderheijden86/mapdiff/pkg/sortstate"
)

type fakeCtrl struct {
	loc       model.FilterContext
	gen       uint64
	mutated   int
	navigated []model.FilterContext
}

func (f *fakeCtrl) OnDataMutated()                     { f.mutated++ }
func (f *fakeCtrl) OnNavigation(l model.FilterContext) { f.navigated = append(f.navigated, l) }
func (f *fakeCtrl) Location() model.FilterContext      { return f.loc }
func (f *fakeCtrl) Generation() uint64                 { return f.gen }

func newFakeCtrl(t *testing.T) *fakeCtrl {
	t.Helper()
	loc, err := model.NewFilterContext("https://example.test/heroes?map=ilios&rank=gold", "map")
	if err != nil {
		t.Fatal(err)
	}
	return &fakeCtrl{loc: loc, gen: 1}
}

func testReport(gen uint64) *pipeline.Report {
	return &pipeline.Report{
		Generation:       gen,
		Location:         "https://example.test/heroes?map=ilios&rank=gold",
		CurrentPartition: "ilios",
		Baseline:         "all-maps",
		Partitions: []model.Partition{
			{ID: "all-maps", DisplayName: "All Maps"},
			{ID: "ilios", DisplayName: "Ilios"},
			{ID: "nepal", DisplayName: "Nepal"},
		},
		Rows: []string{"ana", "mei", "zen"},
		Current: model.SnapshotTable{
			"ana": {Name: "Ana"},
			"mei": {Name: "Mei"},
			"zen": {Name: "Zenyatta"},
		},
		Badges: map[string]pipeline.Badge{
			"ana": {WinRate: model.Float(5), PickRate: model.Float(0.5)},
			"mei": {WinRate: model.Float(-2), PickRate: model.Float(-1)},
			"zen": {WinRate: model.Float(1)},
		},
		Ranked: map[string]pipeline.RankedPartitions{
			"ana": {
				TopWinRate:    analysis.Ranking{{PartitionID: "ilios", DisplayName: "Ilios", Delta: 5}},
				BottomWinRate: analysis.Ranking{{PartitionID: "nepal", DisplayName: "Nepal", Delta: -1}},
			},
		},
		Gains:  []analysis.SubjectDelta{{SubjectID: "ana", Delta: 5}},
		Losses: []analysis.SubjectDelta{{SubjectID: "mei", Delta: -2}},
		Deltas: sortstate.Deltas{
			model.MetricWinRate:  {"ana": 5, "mei": -2, "zen": 1},
			model.MetricPickRate: {"ana": 0.5, "mei": -1},
		},
		Coverage: pipeline.Coverage{Requested: 2, Fetched: 2},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		if !ok {
			t.Fatalf("Update returned %T, want Model", next)
		}
	}
	return m
}

func testModel(ctrl Controller, opts ...Option) Model {
	opts = append([]Option{WithTheme(TestTheme())}, opts...)
	return NewModel(ctrl, opts...)
}

func TestModel_LoadingBeforeFirstReport(t *testing.T) {
	m := testModel(newFakeCtrl(t))
	if !m.Pending() {
		t.Error("Pending() = false before any report")
	}
	if !strings.Contains(m.View(), "Loading snapshots") {
		t.Errorf("View() missing loading text:\n%s", m.View())
	}
}

func TestModel_ReportRendersBadgesAndRankings(t *testing.T) {
	m := send(t, testModel(newFakeCtrl(t)), ReportMsg{Report: testReport(1)})

	if m.Pending() {
		t.Error("Pending() = true with current report")
	}
	view := m.View()
	for _, want := range []string{"Ilios vs All Maps", "Ana", "+5.0", "-2.0", "Zenyatta", "Ilios +5.0", "Nepal -1.0", "Win Δ"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
	if got := m.Rows(); !slices.Equal(got, []string{"ana", "mei", "zen"}) {
		t.Errorf("Rows() = %v, want host order", got)
	}
}

func TestModel_SortCycle(t *testing.T) {
	m := send(t, testModel(newFakeCtrl(t)), ReportMsg{Report: testReport(1)})

	steps := []struct {
		want  []string
		state model.SortState
	}{
		{[]string{"ana", "zen", "mei"}, model.SortState{Key: model.SortWinRate, Direction: model.SortDesc}},
		{[]string{"mei", "zen", "ana"}, model.SortState{Key: model.SortWinRate, Direction: model.SortAsc}},
		{[]string{"ana", "mei", "zen"}, model.SortState{}},
	}
	for i, step := range steps {
		m = send(t, m, runes("w"))
		if got := m.Rows(); !slices.Equal(got, step.want) {
			t.Errorf("step %d: Rows() = %v, want %v", i, got, step.want)
		}
		if got := m.SortState(); got != step.state {
			t.Errorf("step %d: SortState() = %v, want %v", i, got, step.state)
		}
	}
}

func TestModel_SortKeepsSelection(t *testing.T) {
	m := send(t, testModel(newFakeCtrl(t)), ReportMsg{Report: testReport(1)}, runes("j"))
	if m.Selected() != "mei" {
		t.Fatalf("Selected() = %q, want mei", m.Selected())
	}
	m = send(t, m, runes("p"))
	if m.Selected() != "mei" {
		t.Errorf("Selected() after sort = %q, want mei", m.Selected())
	}
	if got := m.Rows(); !slices.Equal(got, []string{"ana", "zen", "mei"}) {
		t.Errorf("Rows() = %v", got)
	}
}

func TestModel_NewReportResetsSort(t *testing.T) {
	ctrl := newFakeCtrl(t)
	m := send(t, testModel(ctrl), ReportMsg{Report: testReport(1)}, runes("w"))
	if !m.SortState().Active() {
		t.Fatal("sort not active after toggle")
	}
	ctrl.gen = 2
	m = send(t, m, ReportMsg{Report: testReport(2)})
	if m.SortState().Active() {
		t.Errorf("SortState() = %v after new report, want none", m.SortState())
	}
	if got := m.Rows(); !slices.Equal(got, []string{"ana", "mei", "zen"}) {
		t.Errorf("Rows() = %v, want host order", got)
	}
}

func TestModel_SortDisabledWithoutDeltas(t *testing.T) {
	r := testReport(1)
	r.Deltas = nil
	m := send(t, testModel(newFakeCtrl(t)), ReportMsg{Report: r}, runes("w"))
	if m.SortState().Active() {
		t.Error("sort toggled although sort controls are off")
	}

	r = testReport(1)
	r.CurrentPartition = r.Baseline
	m = send(t, testModel(newFakeCtrl(t)), ReportMsg{Report: r}, runes("w"))
	if m.SortState().Active() {
		t.Error("sort toggled on the baseline partition")
	}
}

func TestModel_StaleReportIgnored(t *testing.T) {
	ctrl := newFakeCtrl(t)
	ctrl.gen = 3
	newer := testReport(3)
	older := testReport(2)
	older.Rows = []string{"mei"}

	m := send(t, testModel(ctrl), ReportMsg{Report: newer}, ReportMsg{Report: older})
	if m.Report() != newer {
		t.Error("older report replaced a newer one")
	}
}

func TestModel_PartitionNavigation(t *testing.T) {
	ctrl := newFakeCtrl(t)
	m := send(t, testModel(ctrl), ReportMsg{Report: testReport(1)}, runes("]"))

	if len(ctrl.navigated) != 1 {
		t.Fatalf("navigated %d times, want 1", len(ctrl.navigated))
	}
	nav := ctrl.navigated[0]
	if nav.Partition() != "nepal" {
		t.Errorf("navigated to %q, want nepal", nav.Partition())
	}
	if nav.Key() != ctrl.loc.Key() {
		t.Errorf("navigation changed filters: %q vs %q", nav.Key(), ctrl.loc.Key())
	}
	if !strings.Contains(m.Status(), "Loading Nepal") {
		t.Errorf("Status() = %q", m.Status())
	}

	send(t, m, runes("["))
	if got := ctrl.navigated[1].Partition(); got != "all-maps" {
		t.Errorf("prev partition = %q, want all-maps", got)
	}

	send(t, m, runes("b"))
	if got := ctrl.navigated[2].Partition(); got != "all-maps" {
		t.Errorf("baseline key navigated to %q", got)
	}
}

func TestModel_OpenBestPartition(t *testing.T) {
	ctrl := newFakeCtrl(t)
	r := testReport(1)
	r.CurrentPartition = "nepal"
	m := send(t, testModel(ctrl), ReportMsg{Report: r}, tea.KeyMsg{Type: tea.KeyEnter})
	if len(ctrl.navigated) != 1 || ctrl.navigated[0].Partition() != "ilios" {
		t.Fatalf("navigated = %v, want ilios", ctrl.navigated)
	}

	// mei has no ranking
	send(t, m, runes("j"), tea.KeyMsg{Type: tea.KeyEnter})
	if len(ctrl.navigated) != 1 {
		t.Errorf("navigated without a ranking: %v", ctrl.navigated)
	}
}

func TestModel_PartitionWraps(t *testing.T) {
	ctrl := newFakeCtrl(t)
	r := testReport(1)
	r.CurrentPartition = "nepal"
	send(t, testModel(ctrl), ReportMsg{Report: r}, runes("]"))
	if len(ctrl.navigated) != 1 || ctrl.navigated[0].Partition() != "all-maps" {
		t.Errorf("navigated = %v, want wrap to all-maps", ctrl.navigated)
	}
}

func TestModel_Refresh(t *testing.T) {
	ctrl := newFakeCtrl(t)
	m := send(t, testModel(ctrl), ReportMsg{Report: testReport(1)}, runes("r"))
	if ctrl.mutated != 1 {
		t.Errorf("OnDataMutated called %d times, want 1", ctrl.mutated)
	}
	if m.Status() != "Refreshing…" {
		t.Errorf("Status() = %q", m.Status())
	}
}

func TestModel_CopyMarkdown(t *testing.T) {
	var copied string
	m := testModel(newFakeCtrl(t), WithClipboard(func(s string) error {
		copied = s
		return nil
	}))
	m = send(t, m, ReportMsg{Report: testReport(1)}, runes("w"), runes("y"))

	if !strings.Contains(copied, "| Ana | +5.0 |") {
		t.Errorf("copied markdown missing Ana row:\n%s", copied)
	}
	if !strings.Contains(copied, "Sorted by: winrate desc") {
		t.Errorf("copied markdown missing sort:\n%s", copied)
	}
	if !strings.Contains(m.Status(), "Copied") {
		t.Errorf("Status() = %q", m.Status())
	}

	m = testModel(newFakeCtrl(t), WithClipboard(func(string) error { return errors.New("no display") }))
	m = send(t, m, ReportMsg{Report: testReport(1)}, runes("y"))
	if !strings.Contains(m.Status(), "no display") {
		t.Errorf("Status() = %q, want clipboard error", m.Status())
	}
}

func TestModel_ProgressWhilePending(t *testing.T) {
	ctrl := newFakeCtrl(t)
	m := send(t, testModel(ctrl), ReportMsg{Report: testReport(1)})
	ctrl.gen = 2
	m = send(t, m, ProgressMsg{Generation: 2, Progress: batch.Progress{Group: 1, Groups: 2, Done: 5, Total: 10}})

	if !m.Pending() {
		t.Fatal("Pending() = false with newer generation running")
	}
	if !strings.Contains(m.View(), "5/10 maps") {
		t.Errorf("View() missing progress:\n%s", m.View())
	}
}

func TestModel_IncompleteCoverage(t *testing.T) {
	r := testReport(1)
	r.Coverage = pipeline.Coverage{Requested: 2, Fetched: 1}
	m := send(t, testModel(newFakeCtrl(t)), ReportMsg{Report: r})
	if !strings.Contains(m.View(), "1/2 maps") {
		t.Errorf("View() missing coverage:\n%s", m.View())
	}
}

func TestModel_ErrorReport(t *testing.T) {
	r := &pipeline.Report{Generation: 1, CurrentPartition: "ilios", Baseline: "all-maps", Error: "baseline snapshot unavailable"}
	m := send(t, testModel(newFakeCtrl(t)), ReportMsg{Report: r})
	view := m.View()
	if !strings.Contains(view, "baseline snapshot unavailable") {
		t.Errorf("View() missing error:\n%s", view)
	}
	if !strings.Contains(view, "No subjects") {
		t.Errorf("View() missing empty table note:\n%s", view)
	}
}

func TestModel_AnalysisPanel(t *testing.T) {
	m := send(t, testModel(newFakeCtrl(t)), ReportMsg{Report: testReport(1)})
	if !m.panelVisible() {
		t.Fatal("analysis panel hidden for report with outliers")
	}
	if !strings.Contains(m.View(), "Outliers") {
		t.Errorf("View() missing analysis panel:\n%s", m.View())
	}

	m = send(t, m, runes("a"))
	if m.panelVisible() {
		t.Error("panel still visible after toggle")
	}

	m = send(t, m, runes("a"), tea.KeyMsg{Type: tea.KeyTab})
	if !m.focusPanel {
		t.Error("tab did not focus the panel")
	}
	m = send(t, m, runes("j"))
	if m.Selected() != "ana" {
		t.Error("cursor moved while panel focused")
	}
}

func TestModel_CursorClampsAndScrolls(t *testing.T) {
	m := send(t, testModel(newFakeCtrl(t)), ReportMsg{Report: testReport(1)}, runes("k"))
	if m.Selected() != "ana" {
		t.Errorf("Selected() = %q after moving above first row", m.Selected())
	}
	m = send(t, m, runes("j"), runes("j"), runes("j"), runes("j"))
	if m.Selected() != "zen" {
		t.Errorf("Selected() = %q after moving past last row", m.Selected())
	}

	m = send(t, m, tea.WindowSizeMsg{Width: 80, Height: 6})
	if m.offset+m.tableRows() <= m.cursor {
		t.Errorf("cursor %d outside visible window offset=%d rows=%d", m.cursor, m.offset, m.tableRows())
	}
}

func TestModel_Quit(t *testing.T) {
	m := testModel(newFakeCtrl(t))
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestModel_UpdatedAge(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := now
	m := testModel(newFakeCtrl(t), WithClock(func() time.Time { return clock }))
	m = send(t, m, ReportMsg{Report: testReport(1)})
	clock = now.Add(2 * time.Minute)
	if !strings.Contains(m.View(), "updated 2m ago") {
		t.Errorf("View() missing age:\n%s", m.View())
	}
}
