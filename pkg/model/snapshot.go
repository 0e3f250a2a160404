// Package model defines the data types shared by the snapshot, cache and
// analysis layers of mapdiff.
package model

import (
	"fmt"
	"net/url"
	"sort"
)

// Metric identifies one of the two numeric columns carried by a snapshot row.
type Metric string

const (
	// MetricWinRate is the win rate column (percentage points).
	MetricWinRate Metric = "winrate"
	// MetricPickRate is the pick rate column (percentage points).
	MetricPickRate Metric = "pickrate"
)

// Metrics lists the metrics in display order.
var Metrics = []Metric{MetricWinRate, MetricPickRate}

// Label returns a short human-readable name for the metric.
func (m Metric) Label() string {
	switch m {
	case MetricWinRate:
		return "Win rate"
	case MetricPickRate:
		return "Pick rate"
	default:
		return string(m)
	}
}

// SubjectStats is one row of a snapshot. A nil metric means the source did
// not report a value; it is never treated as zero.
type SubjectStats struct {
	Name     string   `json:"name"`
	WinRate  *float64 `json:"winrate"`
	PickRate *float64 `json:"pickrate"`
}

// Value returns the requested metric, or nil when absent.
func (s SubjectStats) Value(m Metric) *float64 {
	switch m {
	case MetricWinRate:
		return s.WinRate
	case MetricPickRate:
		return s.PickRate
	default:
		return nil
	}
}

// SnapshotTable maps subject IDs to their stats for one partition. Tables are
// immutable once parsed; callers must not modify a table they did not build.
type SnapshotTable map[string]SubjectStats

// Value looks up a subject's metric. The second return is false when the
// subject is missing or the metric is absent.
func (t SnapshotTable) Value(subjectID string, m Metric) (float64, bool) {
	row, ok := t[subjectID]
	if !ok {
		return 0, false
	}
	v := row.Value(m)
	if v == nil {
		return 0, false
	}
	return *v, true
}

// SubjectIDs returns the subject IDs in sorted order.
func (t SnapshotTable) SubjectIDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Float returns a pointer to v, for building tables in code and tests.
func Float(v float64) *float64 {
	return &v
}

// Partition describes one entry of the host's partition selector.
type Partition struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// String implements fmt.Stringer.
func (p Partition) String() string {
	if p.DisplayName == "" || p.DisplayName == p.ID {
		return p.ID
	}
	return fmt.Sprintf("%s (%s)", p.DisplayName, p.ID)
}

// PartitionIDs extracts the IDs of ps, preserving order.
func PartitionIDs(ps []Partition) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

// FilterContext is the current location of the host page. Everything except
// the partition parameter determines which cache bucket a fetch belongs to.
type FilterContext struct {
	Location       *url.URL
	PartitionParam string
}

// NewFilterContext parses rawURL into a FilterContext.
func NewFilterContext(rawURL, partitionParam string) (FilterContext, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return FilterContext{}, fmt.Errorf("parsing location: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return FilterContext{}, fmt.Errorf("location %q is not an absolute URL", rawURL)
	}
	return FilterContext{Location: u, PartitionParam: partitionParam}, nil
}

// Key serializes every query parameter except the partition selector into
// a canonical string. url.Values.Encode sorts by key, so parameter order in
// the location never splits a bucket.
func (fc FilterContext) Key() string {
	if fc.Location == nil {
		return ""
	}
	q := fc.Location.Query()
	q.Del(fc.PartitionParam)
	return q.Encode()
}

// Partition returns the partition currently selected by the location.
func (fc FilterContext) Partition() string {
	if fc.Location == nil {
		return ""
	}
	return fc.Location.Query().Get(fc.PartitionParam)
}

// URLFor returns the location with the partition parameter set to id and
// all other parameters preserved.
func (fc FilterContext) URLFor(id string) string {
	if fc.Location == nil {
		return ""
	}
	u := *fc.Location
	q := u.Query()
	q.Set(fc.PartitionParam, id)
	u.RawQuery = q.Encode()
	return u.String()
}

// WithPartition returns a copy of fc whose location selects partition id.
func (fc FilterContext) WithPartition(id string) FilterContext {
	if fc.Location == nil {
		return fc
	}
	u, err := url.Parse(fc.URLFor(id))
	if err != nil {
		return fc
	}
	return FilterContext{Location: u, PartitionParam: fc.PartitionParam}
}

// String returns the full location.
func (fc FilterContext) String() string {
	if fc.Location == nil {
		return ""
	}
	return fc.Location.String()
}

// Relocate parses rawURL as a new location using the same partition
// parameter as fc.
func (fc FilterContext) Relocate(rawURL string) (FilterContext, error) {
	return NewFilterContext(rawURL, fc.PartitionParam)
}
