package sortstate

import (
	"reflect"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/mapdiff/pkg/model"
)

func TestToggleCycle(t *testing.T) {
	var c Controller
	steps := []struct {
		key  model.SortKey
		want string
	}{
		{model.SortWinRate, "winrate desc"},
		{model.SortWinRate, "winrate asc"},
		{model.SortWinRate, "none"},
		{model.SortWinRate, "winrate desc"},
		{model.SortPickRate, "pickrate desc"},
		{model.SortWinRate, "winrate desc"},
		{model.SortNone, "none"},
	}
	for i, step := range steps {
		if got := c.Toggle(step.key).String(); got != step.want {
			t.Fatalf("step %d: Toggle(%s) = %s, want %s", i, step.key, got, step.want)
		}
	}
}

func TestReset(t *testing.T) {
	var c Controller
	c.Toggle(model.SortPickRate)
	c.Reset()
	if c.State().Active() {
		t.Errorf("state after Reset = %s", c.State())
	}
}

func TestApply(t *testing.T) {
	rows := []string{"ana", "mei", "rein", "zen"}
	deltas := Deltas{
		model.MetricWinRate:  {"ana": 1.5, "mei": -2, "rein": 3},
		model.MetricPickRate: {"ana": -1, "zen": 4},
	}

	tests := []struct {
		name  string
		state model.SortState
		want  []string
	}{
		{"inactive", model.SortState{}, []string{"ana", "mei", "rein", "zen"}},
		{"winrate desc", model.SortState{Key: model.SortWinRate}, []string{"rein", "ana", "zen", "mei"}},
		{"winrate asc", model.SortState{Key: model.SortWinRate, Direction: model.SortAsc}, []string{"mei", "zen", "ana", "rein"}},
		{"pickrate desc", model.SortState{Key: model.SortPickRate}, []string{"zen", "mei", "rein", "ana"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Order(tt.state, rows, deltas)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Order = %v, want %v", got, tt.want)
			}
		})
	}
	if !reflect.DeepEqual(rows, []string{"ana", "mei", "rein", "zen"}) {
		t.Errorf("input rows mutated: %v", rows)
	}
}

func TestApply_ThreeTogglesRestoreOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rows := rapid.SliceOfDistinct(rapid.StringMatching(`[a-z]{1,4}`), rapid.ID[string]).Draw(t, "rows")
		win := make(map[string]float64)
		for _, r := range rows {
			if rapid.Bool().Draw(t, "has") {
				win[r] = float64(rapid.IntRange(-3, 3).Draw(t, "d"))
			}
		}
		deltas := Deltas{model.MetricWinRate: win}
		snapshot := make(map[string]float64, len(win))
		for k, v := range win {
			snapshot[k] = v
		}

		var c Controller
		for i := 0; i < 3; i++ {
			c.Toggle(model.SortWinRate)
			sorted := c.Apply(rows, deltas)
			if len(sorted) != len(rows) {
				t.Fatalf("Apply changed row count")
			}
			s := slices.Clone(sorted)
			slices.Sort(s)
			r := slices.Clone(rows)
			slices.Sort(r)
			if !slices.Equal(s, r) {
				t.Fatalf("Apply is not a permutation: %v vs %v", sorted, rows)
			}
		}
		if got := c.Apply(rows, deltas); !slices.Equal(got, rows) {
			t.Fatalf("after three toggles got %v, want original %v", got, rows)
		}
		if !reflect.DeepEqual(win, snapshot) {
			t.Fatalf("deltas mutated")
		}
	})
}
