package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/mapdiff/pkg/config"
	"github.com/vanderheijden86/mapdiff/pkg/export"
	"github.com/vanderheijden86/mapdiff/pkg/metrics"
	"github.com/vanderheijden86/mapdiff/pkg/model"
	"github.com/vanderheijden86/mapdiff/pkg/pipeline"
	"github.com/vanderheijden86/mapdiff/pkg/snapcache"
	"github.com/vanderheijden86/mapdiff/pkg/snapshot"
)

// stack is the assembled fetch and compare chain.
type stack struct {
	source   *snapshot.Source
	cache    *snapcache.Cache
	pipeline *pipeline.Pipeline
}

func newStack(cfg config.Config, opts ...snapshot.Option) stack {
	src := snapshot.New(snapshot.ConfigFrom(cfg.Source), opts...)
	cache := snapcache.New(src, snapcache.WithTTL(cfg.Cache.TTL))
	pipe := pipeline.New(src, cache, pipeline.Options{
		Baseline:  cfg.Source.Baseline,
		GroupSize: cfg.Batch.GroupSize,
	})
	return stack{source: src, cache: cache, pipeline: pipe}
}

// outputs selects what a one-shot run writes.
type outputs struct {
	JSON         bool
	Markdown     bool
	Sort         model.SortState
	SQLitePath   string
	ChartPath    string
	ChartSubject string
	ChartMetric  model.Metric
}

func (o outputs) any() bool {
	return o.JSON || o.Markdown || o.SQLitePath != "" || o.ChartPath != ""
}

// runOnce performs a single comparison and writes the requested outputs.
// The report is returned even when an output fails.
func runOnce(ctx context.Context, cfg config.Config, fc model.FilterContext, s stack, out io.Writer, o outputs) (*pipeline.Report, error) {
	r := s.pipeline.Run(ctx, pipeline.Request{
		Generation: 1,
		Location:   fc,
		Settings:   cfg.Settings(),
	})
	r.Sort = o.Sort

	if o.JSON {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return r, fmt.Errorf("encoding report: %w", err)
		}
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return r, err
		}
	}
	if o.Markdown {
		if err := export.WriteMarkdown(out, r, export.MarkdownOptions{Sort: o.Sort, Aligned: true}); err != nil {
			return r, err
		}
	}
	if o.SQLitePath != "" {
		id, err := export.ExportSQLite(ctx, o.SQLitePath, r)
		if err != nil {
			return r, fmt.Errorf("sqlite export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Saved run %d to %s\n", id, o.SQLitePath)
	}
	if o.ChartPath != "" {
		subject := o.ChartSubject
		if subject == "" {
			subject = defaultChartSubject(r)
		}
		if err := export.SaveChart(r, export.ChartOptions{Path: o.ChartPath, Subject: subject, Metric: o.ChartMetric}); err != nil {
			return r, fmt.Errorf("chart: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote chart for %s to %s\n", r.Name(subject), o.ChartPath)
	}
	return r, nil
}

// defaultChartSubject picks the first row with ranked partitions.
func defaultChartSubject(r *pipeline.Report) string {
	for _, id := range r.Rows {
		if _, ok := r.Ranked[id]; ok {
			return id
		}
	}
	if len(r.Rows) > 0 {
		return r.Rows[0]
	}
	return ""
}

// parseSort accepts "winrate", "pickrate" and their "-asc" variants.
func parseSort(s string) (model.SortState, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return model.SortState{}, nil
	}
	dir := model.SortDesc
	if base, ok := strings.CutSuffix(s, "-asc"); ok {
		s, dir = base, model.SortAsc
	} else {
		s = strings.TrimSuffix(s, "-desc")
	}
	switch s {
	case "winrate", "win":
		return model.SortState{Key: model.SortWinRate, Direction: dir}, nil
	case "pickrate", "pick":
		return model.SortState{Key: model.SortPickRate, Direction: dir}, nil
	default:
		return model.SortState{}, fmt.Errorf("unknown sort %q (want winrate, pickrate, winrate-asc or pickrate-asc)", s)
	}
}

func parseMetric(s string) (model.Metric, error) {
	for _, m := range model.Metrics {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// fatal reports whether a report error left nothing worth printing.
func fatal(r *pipeline.Report) bool {
	return errors.Is(r.Err, pipeline.ErrNoHostView) || errors.Is(r.Err, pipeline.ErrBaselineUnavailable)
}

type statsDump struct {
	Timings []metrics.TimingStats `json:"timings"`
	Caches  []metrics.CacheStats  `json:"caches"`
	Cache   snapcache.Stats       `json:"snapshot_cache"`
}

func writeStats(w io.Writer, c *snapcache.Cache) error {
	d := statsDump{Timings: metrics.AllTimingStats(), Cache: c.Stats()}
	for _, m := range metrics.AllCacheMetrics() {
		d.Caches = append(d.Caches, m.Stats())
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// readLocation returns a func that reads the host location from path.
func readLocation(path string) func() string {
	return func() string {
		data, err := os.ReadFile(path)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}
}
