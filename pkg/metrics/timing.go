// Package metrics records per-stage timings and cache counters for mapdiff
// runs. MAPDIFF_METRICS=0 turns collection off.
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("MAPDIFF_METRICS") != "0")
}

// Enabled reports whether collection is on.
func Enabled() bool { return enabled.Load() }

// SetEnabled turns collection on or off.
func SetEnabled(on bool) { enabled.Store(on) }

// TimingMetric accumulates the durations of one run stage.
type TimingMetric struct {
	stage   string
	runs    atomic.Int64
	totalNs atomic.Int64
	lastNs  atomic.Int64
	slowest atomic.Int64
	fastest atomic.Int64 // 0 until the first sample
}

// Stages in the order a run passes through them.
var (
	SnapshotFetch = stage("snapshot_fetch")
	SnapshotParse = stage("snapshot_parse")
	BatchFetch    = stage("batch_fetch")
	DiffCompute   = stage("diff_compute")
	PipelineRun   = stage("pipeline_run")
	ExportWrite   = stage("export_write")
)

var stages []*TimingMetric

func stage(name string) *TimingMetric {
	m := &TimingMetric{stage: name}
	stages = append(stages, m)
	return m
}

// Record adds one sample.
func (m *TimingMetric) Record(d time.Duration) {
	if !Enabled() {
		return
	}
	ns := d.Nanoseconds()
	m.runs.Add(1)
	m.totalNs.Add(ns)
	m.lastNs.Store(ns)
	swapIf(&m.slowest, ns, func(old int64) bool { return ns > old })
	swapIf(&m.fastest, ns, func(old int64) bool { return old == 0 || ns < old })
}

func swapIf(v *atomic.Int64, ns int64, better func(old int64) bool) {
	for {
		old := v.Load()
		if !better(old) || v.CompareAndSwap(old, ns) {
			return
		}
	}
}

// Timer starts a measurement; call the result to record it.
func Timer(m *TimingMetric) func() {
	if m == nil || !Enabled() {
		return func() {}
	}
	start := time.Now()
	return func() { m.Record(time.Since(start)) }
}

// TimingStats is a point-in-time view of a TimingMetric, in milliseconds.
type TimingStats struct {
	Stage     string  `json:"stage"`
	Runs      int64   `json:"runs"`
	MeanMs    float64 `json:"mean_ms"`
	LastMs    float64 `json:"last_ms"`
	FastestMs float64 `json:"fastest_ms"`
	SlowestMs float64 `json:"slowest_ms"`
}

// Stats returns the current view of m.
func (m *TimingMetric) Stats() TimingStats {
	s := TimingStats{
		Stage:     m.stage,
		Runs:      m.runs.Load(),
		LastMs:    ms(m.lastNs.Load()),
		FastestMs: ms(m.fastest.Load()),
		SlowestMs: ms(m.slowest.Load()),
	}
	if s.Runs > 0 {
		s.MeanMs = ms(m.totalNs.Load() / s.Runs)
	}
	return s
}

func ms(ns int64) float64 { return float64(ns) / 1e6 }

func (m *TimingMetric) reset() {
	for _, v := range []*atomic.Int64{&m.runs, &m.totalNs, &m.lastNs, &m.slowest, &m.fastest} {
		v.Store(0)
	}
}

// AllTimingStats returns the stages that recorded at least one sample.
func AllTimingStats() []TimingStats {
	var out []TimingStats
	for _, m := range stages {
		if s := m.Stats(); s.Runs > 0 {
			out = append(out, s)
		}
	}
	return out
}

// ResetAll clears every stage and cache counter.
func ResetAll() {
	for _, m := range stages {
		m.reset()
	}
	for _, c := range AllCacheMetrics() {
		c.Reset()
	}
}
