// Package pipeline runs one full comparison: read the host view, fetch the
// baseline, compute badges and the analysis panel, fetch every comparison
// partition and rank them per subject.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vanderheijden86/mapdiff/pkg/analysis"
	"github.com/vanderheijden86/mapdiff/pkg/batch"
	"github.com/vanderheijden86/mapdiff/pkg/config"
	"github.com/vanderheijden86/mapdiff/pkg/debug"
	"github.com/vanderheijden86/mapdiff/pkg/metrics"
	"github.com/vanderheijden86/mapdiff/pkg/model"
	"github.com/vanderheijden86/mapdiff/pkg/snapshot"
	"github.com/vanderheijden86/mapdiff/pkg/sortstate"
)

var (
	// ErrNoHostView means the current location could not be read.
	ErrNoHostView = errors.New("host view unavailable")
	// ErrBaselineUnavailable means the all-partitions snapshot could not be
	// obtained, so nothing can be compared.
	ErrBaselineUnavailable = errors.New("baseline snapshot unavailable")
	// ErrInsufficientData means comparison partitions were requested but
	// none could be fetched.
	ErrInsufficientData = errors.New("insufficient data")
)

// HostView reads the page the user is looking at. *snapshot.Source
// satisfies it.
type HostView interface {
	FetchPage(ctx context.Context, fc model.FilterContext) (*snapshot.Page, error)
}

// Options tunes a Pipeline. Zero fields take defaults.
type Options struct {
	Baseline     string
	GroupSize    int
	RankDepth    int
	OutlierCount int
}

func (o *Options) defaults() {
	if o.Baseline == "" {
		o.Baseline = config.DefaultConfig().Source.Baseline
	}
	if o.GroupSize <= 0 {
		o.GroupSize = batch.DefaultGroupSize
	}
	if o.RankDepth <= 0 {
		o.RankDepth = analysis.DefaultRankDepth
	}
	if o.OutlierCount <= 0 {
		o.OutlierCount = analysis.DefaultRankDepth
	}
}

// Request describes one run.
type Request struct {
	Generation uint64
	Location   model.FilterContext
	Settings   config.Settings
	// Progress, if set, is called when the comparison fetch starts and after
	// every batch group. It is only called when progress markers are enabled.
	Progress func(batch.Progress)
}

// Pipeline is stateless apart from its collaborators and may run
// concurrently.
type Pipeline struct {
	host  HostView
	cache batch.Getter
	opts  Options
}

// New creates a Pipeline. cache is normally a *snapcache.Cache.
func New(host HostView, cache batch.Getter, opts Options) *Pipeline {
	opts.defaults()
	return &Pipeline{host: host, cache: cache, opts: opts}
}

// Baseline returns the baseline partition ID.
func (p *Pipeline) Baseline() string {
	return p.opts.Baseline
}

// Run executes one comparison. Failures are reported in Report.Err; the
// report always carries whatever could be computed before the failure.
func (p *Pipeline) Run(ctx context.Context, req Request) *Report {
	defer metrics.Timer(metrics.PipelineRun)()
	start := time.Now()
	fc := req.Location

	r := &Report{
		Generation: req.Generation,
		Location:   fc.String(),
		Baseline:   p.opts.Baseline,
	}

	page, err := p.host.FetchPage(ctx, fc)
	if err != nil {
		return r.fail(fmt.Errorf("%w: %w", ErrNoHostView, err))
	}
	r.Current = page.Table
	r.Rows = page.Rows
	r.Partitions = page.Partitions
	r.CurrentPartition = page.Selected
	if r.CurrentPartition == "" {
		r.CurrentPartition = fc.Partition()
	}
	if r.CurrentPartition == "" {
		r.CurrentPartition = p.opts.Baseline
	}

	baseline := p.cache.Get(ctx, fc, p.opts.Baseline)
	if baseline == nil {
		return r.fail(ErrBaselineUnavailable)
	}

	if !r.OnBaseline() {
		p.compare(r, page.Table, baseline, req.Settings)
	}

	s := req.Settings
	wantWin := s.Enabled(config.FeatureRankedWinRate)
	wantPick := s.Enabled(config.FeatureRankedPickRate)
	if wantWin || wantPick {
		p.rank(ctx, r, req, baseline, wantWin, wantPick)
		if r.Coverage.Requested > 0 && r.Coverage.Fetched == 0 {
			r.fail(fmt.Errorf("%w: none of %d partitions could be fetched", ErrInsufficientData, r.Coverage.Requested))
		}
	}

	debug.LogTiming(fmt.Sprintf("pipeline run %d (%s)", req.Generation, r.CurrentPartition), time.Since(start))
	return r
}

// compare fills the current-vs-baseline parts of the report.
func (p *Pipeline) compare(r *Report, current, baseline model.SnapshotTable, s config.Settings) {
	defer metrics.Timer(metrics.DiffCompute)()

	win := analysis.PerSubjectDelta(current, baseline, model.MetricWinRate)
	pick := analysis.PerSubjectDelta(current, baseline, model.MetricPickRate)
	if s.Enabled(config.FeatureSortControls) {
		r.Deltas = sortstate.Deltas{model.MetricWinRate: win, model.MetricPickRate: pick}
	}

	if s.Enabled(config.FeatureDiffBadges) {
		r.Badges = make(map[string]Badge, len(current))
		for id := range current {
			var b Badge
			if d, ok := win[id]; ok {
				b.WinRate = model.Float(d)
			}
			if d, ok := pick[id]; ok {
				b.PickRate = model.Float(d)
			}
			if b.WinRate != nil || b.PickRate != nil {
				r.Badges[id] = b
			}
		}
	}

	if s.Enabled(config.FeatureAnalysisPanel) {
		partition := model.Partition{ID: r.CurrentPartition, DisplayName: r.PartitionName(r.CurrentPartition)}
		records := analysis.Records(win, partition)
		r.Traits = analysis.TraitAggregates(records, s.TagsFor, analysis.TraitOptions{})
		r.Roles = analysis.RoleAggregates(records, config.RoleOf)
		r.Gains, r.Losses = analysis.Outliers(win, p.opts.OutlierCount)
	}
}

// rank fetches every comparison partition and ranks them per subject.
func (p *Pipeline) rank(ctx context.Context, r *Report, req Request, baseline model.SnapshotTable, wantWin, wantPick bool) {
	ids := model.PartitionIDs(r.Partitions)
	r.Coverage.Requested = len(batch.Unique(ids))

	opts := []batch.Option{batch.WithGroupSize(p.opts.GroupSize)}
	if progress := req.Progress; progress != nil && req.Settings.Enabled(config.FeatureProgressMarkers) {
		progress(batch.Progress{Groups: len(batch.Groups(ids, p.opts.GroupSize)), Total: r.Coverage.Requested})
		opts = append(opts, batch.WithProgress(progress))
	}
	tables := batch.New(p.cache, opts...).FetchAll(ctx, req.Location, ids)
	r.Coverage.Fetched = len(tables)

	defer metrics.Timer(metrics.DiffCompute)()
	r.Ranked = make(map[string]RankedPartitions, len(r.Rows))
	depth := p.opts.RankDepth
	for _, id := range r.Rows {
		var rp RankedPartitions
		if base, ok := baseline.Value(id, model.MetricWinRate); ok && wantWin {
			ranking := analysis.RankPartitions(id, base, model.MetricWinRate, r.Partitions, tables)
			rp.TopWinRate, rp.BottomWinRate = ranking.Top(depth), ranking.Bottom(depth)
		}
		if base, ok := baseline.Value(id, model.MetricPickRate); ok && wantPick {
			ranking := analysis.RankPartitions(id, base, model.MetricPickRate, r.Partitions, tables)
			rp.TopPickRate, rp.BottomPickRate = ranking.Top(depth), ranking.Bottom(depth)
		}
		if len(rp.TopWinRate) > 0 || len(rp.TopPickRate) > 0 {
			r.Ranked[id] = rp
		}
	}
}
