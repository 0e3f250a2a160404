package model

import "fmt"

// DeltaRecord is one subject's metric delta on one partition versus the
// all-partitions baseline. Records are recomputed on every run.
type DeltaRecord struct {
	SubjectID   string  `json:"subject_id"`
	PartitionID string  `json:"partition_id"`
	DisplayName string  `json:"display_name"`
	Delta       float64 `json:"delta"`
}

// TraitAggregate is the mean delta of all subjects carrying a tag.
type TraitAggregate struct {
	Tag          string  `json:"tag"`
	AverageDelta float64 `json:"average_delta"`
	SampleCount  int     `json:"sample_count"`
}

// TraitSummary holds the tags that clear both the sample floor and the
// magnitude threshold, strongest first.
type TraitSummary struct {
	Favored  []TraitAggregate `json:"favored"`
	Punished []TraitAggregate `json:"punished"`
}

// Empty reports whether neither list has entries.
func (s TraitSummary) Empty() bool {
	return len(s.Favored) == 0 && len(s.Punished) == 0
}

// SortKey selects which delta column drives row ordering.
type SortKey int

const (
	SortNone SortKey = iota
	SortWinRate
	SortPickRate
)

// String implements fmt.Stringer.
func (k SortKey) String() string {
	switch k {
	case SortNone:
		return "none"
	case SortWinRate:
		return "winrate"
	case SortPickRate:
		return "pickrate"
	default:
		return fmt.Sprintf("SortKey(%d)", int(k))
	}
}

// Metric returns the metric the key sorts by. SortNone has no metric.
func (k SortKey) Metric() (Metric, bool) {
	switch k {
	case SortWinRate:
		return MetricWinRate, true
	case SortPickRate:
		return MetricPickRate, true
	default:
		return "", false
	}
}

// SortDirection is the order applied by an active sort key.
type SortDirection int

const (
	SortDesc SortDirection = iota
	SortAsc
)

// String implements fmt.Stringer.
func (d SortDirection) String() string {
	if d == SortAsc {
		return "asc"
	}
	return "desc"
}

// SortState is the user's current diff-sort selection.
type SortState struct {
	Key       SortKey       `json:"key"`
	Direction SortDirection `json:"direction"`
}

// Active reports whether a sort key is selected.
func (s SortState) Active() bool {
	return s.Key != SortNone
}

// String implements fmt.Stringer.
func (s SortState) String() string {
	if !s.Active() {
		return "none"
	}
	return s.Key.String() + " " + s.Direction.String()
}

// MarshalText encodes the key by name.
func (k SortKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MarshalText encodes the direction by name.
func (d SortDirection) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
