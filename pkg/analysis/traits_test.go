package analysis

import (
	"math"
	"sort"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/mapdiff/pkg/model"
)

func recs(deltas map[string]float64) []model.DeltaRecord {
	return Records(deltas, model.Partition{ID: "x", DisplayName: "X"})
}

func tagsFrom(m map[string][]string) func(string) []string {
	return func(id string) []string { return m[id] }
}

func TestTraitAggregates_SampleFloor(t *testing.T) {
	records := recs(map[string]float64{"a": 5, "b": 5, "c": 1, "d": 1, "e": 1})
	tags := tagsFrom(map[string][]string{
		"a": {"dive"}, "b": {"dive"}, // only 2 samples
		"c": {"poke"}, "d": {"poke"}, "e": {"poke"},
	})

	s := TraitAggregates(records, tags, TraitOptions{})
	if len(s.Favored) != 1 || s.Favored[0].Tag != "poke" {
		t.Fatalf("favored = %+v, want only poke", s.Favored)
	}
	if s.Favored[0].SampleCount != 3 || s.Favored[0].AverageDelta != 1 {
		t.Errorf("poke = %+v", s.Favored[0])
	}
}

func TestTraitAggregates_StrictThreshold(t *testing.T) {
	records := recs(map[string]float64{"a": 0.3, "b": 0.3, "c": 0.3, "d": -0.3, "e": -0.3, "f": -0.3})
	tags := tagsFrom(map[string][]string{
		"a": {"up"}, "b": {"up"}, "c": {"up"},
		"d": {"down"}, "e": {"down"}, "f": {"down"},
	})

	if s := TraitAggregates(records, tags, TraitOptions{}); !s.Empty() {
		t.Errorf("summary = %+v, want empty at exactly ±threshold", s)
	}
}

func TestTraitAggregates_ZeroThreshold(t *testing.T) {
	records := recs(map[string]float64{"a": 0.1, "b": 0.1, "c": 0.1, "d": 0, "e": 0, "f": 0})
	tags := tagsFrom(map[string][]string{
		"a": {"up"}, "b": {"up"}, "c": {"up"},
		"d": {"flat"}, "e": {"flat"}, "f": {"flat"},
	})

	if s := TraitAggregates(records, tags, TraitOptions{}); !s.Empty() {
		t.Errorf("default threshold: summary = %+v, want empty", s)
	}
	s := TraitAggregates(records, tags, TraitOptions{Threshold: model.Float(0)})
	if len(s.Favored) != 1 || s.Favored[0].Tag != "up" {
		t.Errorf("favored = %+v, want only up", s.Favored)
	}
	if len(s.Punished) != 0 {
		t.Errorf("punished = %+v, want none for a zero mean", s.Punished)
	}
}

func TestTraitAggregates_CapAndOrder(t *testing.T) {
	records := recs(map[string]float64{"a": 1, "b": 2, "c": 3, "d": -4, "e": -0.1})
	all := []string{"t1", "t2", "t3"}
	tags := tagsFrom(map[string][]string{
		"a": all, "b": all, "c": {"t1", "t2", "t3", "t4"},
		"d": {"t4", "t5"}, "e": {"t4", "t5"},
	})
	// t1..t3 = 2.0 from {a,b,c}; t4 = (3-4-0.1)/3; t5 has two samples.

	s := TraitAggregates(records, tags, TraitOptions{})
	if len(s.Favored) != MaxTraits {
		t.Fatalf("favored = %+v, want %d entries", s.Favored, MaxTraits)
	}
	if s.Favored[0].Tag != "t1" || s.Favored[1].Tag != "t2" {
		t.Errorf("favored order = %s, %s; want t1, t2", s.Favored[0].Tag, s.Favored[1].Tag)
	}
	if len(s.Punished) != 1 || s.Punished[0].Tag != "t4" {
		t.Errorf("punished = %+v, want [t4]", s.Punished)
	}
	if math.Abs(s.Punished[0].AverageDelta-(-1.1/3)) > 1e-12 {
		t.Errorf("t4 mean = %v", s.Punished[0].AverageDelta)
	}
}

func TestTraitAggregates_DuplicateTagsCountOnce(t *testing.T) {
	records := recs(map[string]float64{"a": 1, "b": 1})
	tags := tagsFrom(map[string][]string{"a": {"x", "x", "x"}, "b": {"x"}})

	got := AllTraits(records, tags, 1)
	if len(got) != 1 || got[0].SampleCount != 2 {
		t.Errorf("AllTraits = %+v, want x with 2 samples", got)
	}
}

func TestRoleAggregates(t *testing.T) {
	records := recs(map[string]float64{"rein": 2, "dva": 4, "ana": -1, "mystery": 9})
	roles := map[string]string{"rein": "tank", "dva": "tank", "ana": "support"}

	got := RoleAggregates(records, func(id string) string { return roles[id] })
	want := []RoleAggregate{
		{Role: "tank", AverageDelta: 3, SampleCount: 2},
		{Role: "support", AverageDelta: -1, SampleCount: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("RoleAggregates = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("role %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTraitAggregates_Properties(t *testing.T) {
	tagPool := []string{"dive", "poke", "brawl", "sustain", "burst"}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "subjects")
		deltas := make(map[string]float64, n)
		tagMap := make(map[string][]string, n)
		for i := 0; i < n; i++ {
			id := string(rune('a' + i))
			deltas[id] = rapid.Float64Range(-10, 10).Draw(t, "delta")
			tagMap[id] = rapid.SliceOfNDistinct(rapid.SampledFrom(tagPool), 0, 3, rapid.ID[string]).Draw(t, "tags")
		}

		s := TraitAggregates(recs(deltas), tagsFrom(tagMap), TraitOptions{})

		if len(s.Favored) > MaxTraits || len(s.Punished) > MaxTraits {
			t.Fatalf("caps exceeded: %+v", s)
		}
		for _, agg := range s.Favored {
			if agg.SampleCount < MinTraitSample || agg.AverageDelta <= TraitThreshold {
				t.Fatalf("favored %+v violates floor or threshold", agg)
			}
		}
		for _, agg := range s.Punished {
			if agg.SampleCount < MinTraitSample || agg.AverageDelta >= -TraitThreshold {
				t.Fatalf("punished %+v violates floor or threshold", agg)
			}
		}
		for _, list := range [][]model.TraitAggregate{s.Favored, s.Punished} {
			if !sort.SliceIsSorted(list, func(i, j int) bool {
				return math.Abs(list[i].AverageDelta) > math.Abs(list[j].AverageDelta)
			}) {
				t.Fatalf("not ordered by magnitude: %+v", list)
			}
		}
	})
}

func TestPerSubjectDelta_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 15).Draw(t, "n")
		current := make(model.SnapshotTable)
		baseline := make(model.SnapshotTable)
		for i := 0; i < n; i++ {
			id := string(rune('a' + i))
			if rapid.Bool().Draw(t, "inCurrent") {
				current[id] = model.SubjectStats{WinRate: maybe(t, "cur")}
			}
			if rapid.Bool().Draw(t, "inBaseline") {
				baseline[id] = model.SubjectStats{WinRate: maybe(t, "base")}
			}
		}

		deltas := PerSubjectDelta(current, baseline, model.MetricWinRate)
		for id, d := range deltas {
			c, okC := current.Value(id, model.MetricWinRate)
			b, okB := baseline.Value(id, model.MetricWinRate)
			if !okC || !okB {
				t.Fatalf("%s has a delta without values on both sides", id)
			}
			if d != c-b {
				t.Fatalf("%s delta = %v, want %v", id, d, c-b)
			}
		}
		for id := range current {
			_, okC := current.Value(id, model.MetricWinRate)
			_, okB := baseline.Value(id, model.MetricWinRate)
			if _, ok := deltas[id]; ok != (okC && okB) {
				t.Fatalf("%s inclusion = %v, want %v", id, ok, okC && okB)
			}
		}
	})
}

func maybe(t *rapid.T, label string) *float64 {
	if rapid.Bool().Draw(t, label+"Present") {
		return model.Float(rapid.Float64Range(0, 100).Draw(t, label))
	}
	return nil
}

func TestRankPartitions_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(t, "partitions")
		var partitions []model.Partition
		tables := make(map[string]model.SnapshotTable)
		for i := 0; i < n; i++ {
			id := string(rune('a' + i))
			partitions = append(partitions, model.Partition{ID: id})
			// Few distinct values so ties are common.
			v := float64(rapid.IntRange(45, 48).Draw(t, "win"))
			tables[id] = model.SnapshotTable{"ana": {WinRate: model.Float(v)}}
		}

		r := RankPartitions("ana", 46, model.MetricWinRate, partitions, tables)
		if len(r) != n {
			t.Fatalf("len = %d, want %d", len(r), n)
		}
		order := make(map[string]int, n)
		for i, p := range partitions {
			order[p.ID] = i
		}
		for i := 1; i < len(r); i++ {
			if r[i-1].Delta < r[i].Delta {
				t.Fatalf("not descending at %d: %+v", i, r)
			}
			if r[i-1].Delta == r[i].Delta && order[r[i-1].PartitionID] > order[r[i].PartitionID] {
				t.Fatalf("tie broke partition order at %d: %+v", i, r)
			}
		}
		bottom := r.Bottom(DefaultRankDepth)
		for i, e := range bottom {
			if e != r[len(r)-1-i] {
				t.Fatalf("Bottom[%d] = %+v, want %+v", i, e, r[len(r)-1-i])
			}
		}
	})
}
