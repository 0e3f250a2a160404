package pipeline

import (
	"github.com/vanderheijden86/mapdiff/pkg/analysis"
	"github.com/vanderheijden86/mapdiff/pkg/model"
	"github.com/vanderheijden86/mapdiff/pkg/sortstate"
)

// Badge holds a subject's deltas on the current partition. A nil field
// means one of the two tables had no value for that metric.
type Badge struct {
	WinRate  *float64 `json:"winrate,omitempty"`
	PickRate *float64 `json:"pickrate,omitempty"`
}

// RankedPartitions is a subject's best and worst partitions per metric.
// Bottom lists are worst first.
type RankedPartitions struct {
	TopWinRate     analysis.Ranking `json:"top_winrate,omitempty"`
	BottomWinRate  analysis.Ranking `json:"bottom_winrate,omitempty"`
	TopPickRate    analysis.Ranking `json:"top_pickrate,omitempty"`
	BottomPickRate analysis.Ranking `json:"bottom_pickrate,omitempty"`
}

// Coverage counts comparison partitions asked for and obtained.
type Coverage struct {
	Requested int `json:"requested"`
	Fetched   int `json:"fetched"`
}

// Complete reports whether every requested partition was obtained.
func (c Coverage) Complete() bool {
	return c.Fetched >= c.Requested
}

// Report is the read-only result of one run. Consumers must not modify it.
type Report struct {
	Generation       uint64              `json:"generation"`
	Location         string              `json:"location"`
	CurrentPartition string              `json:"current_partition"`
	Baseline         string              `json:"baseline"`
	Partitions       []model.Partition   `json:"partitions,omitempty"`
	Rows             []string            `json:"rows,omitempty"` // Subject IDs in host order
	Current          model.SnapshotTable `json:"-"`

	Badges   map[string]Badge            `json:"badges,omitempty"`
	Ranked   map[string]RankedPartitions `json:"ranked,omitempty"`
	Traits   model.TraitSummary          `json:"traits"`
	Roles    []analysis.RoleAggregate    `json:"roles,omitempty"`
	Gains    []analysis.SubjectDelta     `json:"gains,omitempty"`
	Losses   []analysis.SubjectDelta     `json:"losses,omitempty"`
	Deltas   sortstate.Deltas            `json:"-"`
	Sort     model.SortState             `json:"sort"`
	Coverage Coverage                    `json:"coverage"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// OnBaseline reports whether the host is showing the baseline itself, in
// which case there are no badges, traits or sort controls.
func (r *Report) OnBaseline() bool {
	return r.CurrentPartition == r.Baseline
}

// SortedRows returns the rows ordered by state. The report itself keeps
// the host order.
func (r *Report) SortedRows(state model.SortState) []string {
	return sortstate.Order(state, r.Rows, r.Deltas)
}

// Name returns the display name for subjectID.
func (r *Report) Name(subjectID string) string {
	if s, ok := r.Current[subjectID]; ok && s.Name != "" {
		return s.Name
	}
	return subjectID
}

// PartitionName returns the display name for a partition ID.
func (r *Report) PartitionName(id string) string {
	for _, p := range r.Partitions {
		if p.ID == id && p.DisplayName != "" {
			return p.DisplayName
		}
	}
	return id
}

func (r *Report) fail(err error) *Report {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
