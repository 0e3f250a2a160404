package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/mapdiff/pkg/model"
)

const (
	// MinTraitSample is the fewest subjects a tag needs to be reported.
	MinTraitSample = 3
	// TraitThreshold is the magnitude a tag mean must strictly exceed.
	TraitThreshold = 0.3
	// MaxTraits caps each of the favoured and punished lists.
	MaxTraits = 2
)

// TraitOptions tunes TraitAggregates.
type TraitOptions struct {
	MinSample int      // 0 = MinTraitSample
	Threshold *float64 // nil = TraitThreshold; zero reports any non-zero mean
	Limit     int      // 0 = MaxTraits
}

func (o TraitOptions) withDefaults() TraitOptions {
	if o.MinSample <= 0 {
		o.MinSample = MinTraitSample
	}
	if o.Threshold == nil {
		o.Threshold = model.Float(TraitThreshold)
	}
	if o.Limit <= 0 {
		o.Limit = MaxTraits
	}
	return o
}

// groupMeans averages record deltas per group. A record counts once per
// distinct group it belongs to.
func groupMeans(records []model.DeltaRecord, groupsOf func(subjectID string) []string) map[string][]float64 {
	samples := make(map[string][]float64)
	for _, r := range records {
		seen := make(map[string]struct{})
		for _, g := range groupsOf(r.SubjectID) {
			if g == "" {
				continue
			}
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			samples[g] = append(samples[g], r.Delta)
		}
	}
	return samples
}

// AllTraits returns the mean delta of every tag with at least minSample
// subjects, strongest magnitude first. Ties are broken by tag name.
func AllTraits(records []model.DeltaRecord, tagsOf func(subjectID string) []string, minSample int) []model.TraitAggregate {
	var out []model.TraitAggregate
	for tag, xs := range groupMeans(records, tagsOf) {
		if len(xs) < minSample {
			continue
		}
		out = append(out, model.TraitAggregate{
			Tag:          tag,
			AverageDelta: stat.Mean(xs, nil),
			SampleCount:  len(xs),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].AverageDelta), math.Abs(out[j].AverageDelta)
		if ai != aj {
			return ai > aj
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// TraitAggregates summarizes which tags a partition favours or punishes.
func TraitAggregates(records []model.DeltaRecord, tagsOf func(subjectID string) []string, opts TraitOptions) model.TraitSummary {
	opts = opts.withDefaults()
	threshold := math.Abs(*opts.Threshold)

	var summary model.TraitSummary
	for _, agg := range AllTraits(records, tagsOf, opts.MinSample) {
		switch {
		case agg.AverageDelta > threshold && len(summary.Favored) < opts.Limit:
			summary.Favored = append(summary.Favored, agg)
		case agg.AverageDelta < -threshold && len(summary.Punished) < opts.Limit:
			summary.Punished = append(summary.Punished, agg)
		}
	}
	return summary
}

// RoleAggregate is the mean delta of all subjects in a role.
type RoleAggregate struct {
	Role         string  `json:"role"`
	AverageDelta float64 `json:"average_delta"`
	SampleCount  int     `json:"sample_count"`
}

// RoleAggregates averages deltas per role. Subjects without a role are
// skipped. The result is ordered by mean delta, highest first.
func RoleAggregates(records []model.DeltaRecord, roleOf func(subjectID string) string) []RoleAggregate {
	groups := groupMeans(records, func(id string) []string {
		return []string{roleOf(id)}
	})
	out := make([]RoleAggregate, 0, len(groups))
	for role, xs := range groups {
		out = append(out, RoleAggregate{Role: role, AverageDelta: stat.Mean(xs, nil), SampleCount: len(xs)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageDelta != out[j].AverageDelta {
			return out[i].AverageDelta > out[j].AverageDelta
		}
		return out[i].Role < out[j].Role
	})
	return out
}
