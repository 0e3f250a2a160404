// Package batch fetches many partitions through the snapshot cache in
// sequential groups of bounded size.
package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/mapdiff/pkg/debug"
	"github.com/vanderheijden86/mapdiff/pkg/metrics"
	"github.com/vanderheijden86/mapdiff/pkg/model"
)

// DefaultGroupSize is the number of partitions fetched concurrently.
const DefaultGroupSize = 5

// Getter returns a snapshot or nil when it is unavailable. *snapcache.Cache
// satisfies it.
type Getter interface {
	Get(ctx context.Context, fc model.FilterContext, partition string) model.SnapshotTable
}

// Progress is reported after each group settles.
type Progress struct {
	Group  int // 1-based index of the group that just finished
	Groups int
	Done   int // partitions attempted so far
	Total  int
}

// Fraction returns completion in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Done) / float64(p.Total)
}

// Fetcher runs batched fetches.
type Fetcher struct {
	getter     Getter
	groupSize  int
	onProgress func(Progress)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithGroupSize sets the per-group concurrency. Values below 1 are ignored.
func WithGroupSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.groupSize = n
		}
	}
}

// WithProgress registers an observer called after every group.
func WithProgress(fn func(Progress)) Option {
	return func(f *Fetcher) { f.onProgress = fn }
}

// New creates a Fetcher over getter.
func New(getter Getter, opts ...Option) *Fetcher {
	f := &Fetcher{getter: getter, groupSize: DefaultGroupSize}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GroupSize returns the configured group size.
func (f *Fetcher) GroupSize() int {
	return f.groupSize
}

// Groups splits ids into consecutive chunks of at most size, after dropping
// duplicates (first occurrence wins).
func Groups(ids []string, size int) [][]string {
	if size < 1 {
		size = DefaultGroupSize
	}
	uniq := Unique(ids)
	var groups [][]string
	for start := 0; start < len(uniq); start += size {
		end := min(start+size, len(uniq))
		groups = append(groups, uniq[start:end])
	}
	return groups
}

// Unique drops repeated ids, keeping first occurrences in order.
func Unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// FetchAll fetches every id under fc and returns the tables that could be
// obtained. A failed partition is simply missing from the result; it never
// affects its siblings or later groups. Groups run strictly one after
// another. If ctx is cancelled, no further group is started and the tables
// gathered so far are returned.
func (f *Fetcher) FetchAll(ctx context.Context, fc model.FilterContext, ids []string) map[string]model.SnapshotTable {
	start := time.Now()
	groups := Groups(ids, f.groupSize)
	total := 0
	for _, g := range groups {
		total += len(g)
	}

	out := make(map[string]model.SnapshotTable, total)
	done := 0
	for gi, group := range groups {
		if ctx.Err() != nil {
			debug.Log("batch: stopping before group %d/%d: %v", gi+1, len(groups), ctx.Err())
			break
		}

		tables := f.fetchGroup(ctx, fc, group)
		for i, id := range group {
			if tables[i] != nil {
				out[id] = tables[i]
			}
		}
		done += len(group)

		if f.onProgress != nil {
			f.onProgress(Progress{Group: gi + 1, Groups: len(groups), Done: done, Total: total})
		}
	}

	elapsed := time.Since(start)
	metrics.BatchFetch.Record(elapsed)
	debug.Log("batch: fetched %d/%d partitions in %d groups (%v)", len(out), total, len(groups), elapsed)
	return out
}

// fetchGroup fetches one group concurrently. Members never return an error,
// so a failure cannot cancel its siblings.
func (f *Fetcher) fetchGroup(ctx context.Context, fc model.FilterContext, group []string) []model.SnapshotTable {
	tables := make([]model.SnapshotTable, len(group))

	var g errgroup.Group
	for i, id := range group {
		g.Go(func() error {
			tables[i] = f.getter.Get(ctx, fc, id)
			return nil
		})
	}
	_ = g.Wait()

	return tables
}
