// Package analysis compares snapshot tables: per-subject deltas against the
// baseline, partition rankings for one subject, and tag-level aggregates.
//
// Nothing here rounds. Deltas are exact differences of the parsed values;
// FormatDelta is the only place a precision is chosen.
package analysis

import (
	"sort"

	"github.com/vanderheijden86/mapdiff/pkg/model"
)

// PerSubjectDelta returns current − baseline for every subject present in
// both tables with a value for m on both sides.
func PerSubjectDelta(current, baseline model.SnapshotTable, m model.Metric) map[string]float64 {
	out := make(map[string]float64, len(current))
	for id := range current {
		cur, ok := current.Value(id, m)
		if !ok {
			continue
		}
		base, ok := baseline.Value(id, m)
		if !ok {
			continue
		}
		out[id] = cur - base
	}
	return out
}

// Records turns a delta map into records tagged with the partition they
// were computed for, ordered by subject id.
func Records(deltas map[string]float64, partition model.Partition) []model.DeltaRecord {
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]model.DeltaRecord, len(ids))
	for i, id := range ids {
		records[i] = model.DeltaRecord{
			SubjectID:   id,
			PartitionID: partition.ID,
			DisplayName: partition.DisplayName,
			Delta:       deltas[id],
		}
	}
	return records
}

// SubjectDelta is a single subject's delta, used for outlier lists.
type SubjectDelta struct {
	SubjectID string  `json:"subject_id"`
	Delta     float64 `json:"delta"`
}

// Outliers returns up to n subjects with the largest positive deltas
// (largest first) and up to n with the largest negative deltas (most
// negative first). Zero deltas appear in neither list.
func Outliers(deltas map[string]float64, n int) (gains, losses []SubjectDelta) {
	if n <= 0 {
		return nil, nil
	}
	for id, d := range deltas {
		switch {
		case d > 0:
			gains = append(gains, SubjectDelta{SubjectID: id, Delta: d})
		case d < 0:
			losses = append(losses, SubjectDelta{SubjectID: id, Delta: d})
		}
	}
	sort.Slice(gains, func(i, j int) bool {
		if gains[i].Delta != gains[j].Delta {
			return gains[i].Delta > gains[j].Delta
		}
		return gains[i].SubjectID < gains[j].SubjectID
	})
	sort.Slice(losses, func(i, j int) bool {
		if losses[i].Delta != losses[j].Delta {
			return losses[i].Delta < losses[j].Delta
		}
		return losses[i].SubjectID < losses[j].SubjectID
	})
	if len(gains) > n {
		gains = gains[:n]
	}
	if len(losses) > n {
		losses = losses[:n]
	}
	return gains, losses
}
