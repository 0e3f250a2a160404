package analysis

import (
	"sort"

	"github.com/vanderheijden86/mapdiff/pkg/model"
)

// DefaultRankDepth is how many partitions each side of a ranking shows.
const DefaultRankDepth = 3

// RankedPartition is one partition's delta for a subject.
type RankedPartition struct {
	PartitionID string  `json:"partition_id"`
	DisplayName string  `json:"display_name"`
	Delta       float64 `json:"delta"`
}

// Ranking lists partitions from most favourable to least.
type Ranking []RankedPartition

// Top returns the first n entries.
func (r Ranking) Top(n int) Ranking {
	if n <= 0 {
		return nil
	}
	if n > len(r) {
		n = len(r)
	}
	return append(Ranking(nil), r[:n]...)
}

// Bottom returns the last n entries, worst first.
func (r Ranking) Bottom(n int) Ranking {
	if n <= 0 {
		return nil
	}
	if n > len(r) {
		n = len(r)
	}
	out := make(Ranking, 0, n)
	for i := len(r) - 1; i >= len(r)-n; i-- {
		out = append(out, r[i])
	}
	return out
}

// RankPartitions computes the subject's delta on every partition whose
// table has a value for m, then sorts descending. Equal deltas keep the
// order of partitions.
func RankPartitions(subjectID string, baselineValue float64, m model.Metric, partitions []model.Partition, tables map[string]model.SnapshotTable) Ranking {
	var out Ranking
	for _, p := range partitions {
		table, ok := tables[p.ID]
		if !ok {
			continue
		}
		v, ok := table.Value(subjectID, m)
		if !ok {
			continue
		}
		out = append(out, RankedPartition{
			PartitionID: p.ID,
			DisplayName: p.DisplayName,
			Delta:       v - baselineValue,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Delta > out[j].Delta
	})
	return out
}
