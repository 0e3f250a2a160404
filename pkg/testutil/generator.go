// Package testutil provides deterministic snapshot fixtures and a fake stats
// site for tests.
package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/vanderheijden86/mapdiff/pkg/model"
)

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed       int64   // Random seed for determinism (0 = use current time)
	Subjects   int     // Rows per table (default: 12)
	Partitions int     // Comparison partitions besides the baseline (default: 8)
	Spread     float64 // Max |delta| of a partition value from the baseline (default: 5)
	MissingPct float64 // Share of pick rates left absent, 0..1
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:       42,
		Subjects:   12,
		Partitions: 8,
		Spread:     5,
	}
}

// Generator creates snapshot fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	def := DefaultConfig()
	if cfg.Subjects <= 0 {
		cfg.Subjects = def.Subjects
	}
	if cfg.Partitions < 0 {
		cfg.Partitions = 0
	}
	if cfg.Spread <= 0 {
		cfg.Spread = def.Spread
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// SubjectIDs returns "hero-01", "hero-02", ... in row order.
func (g *Generator) SubjectIDs() []string {
	return ids("hero", g.cfg.Subjects)
}

// PartitionIDs returns "map-01", "map-02", ... in selector order.
func (g *Generator) PartitionIDs() []string {
	return ids("map", g.cfg.Partitions)
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%02d", prefix, i+1)
	}
	return out
}

// Baseline generates the all-partitions table.
func (g *Generator) Baseline() model.SnapshotTable {
	t := make(model.SnapshotTable, g.cfg.Subjects)
	for i, id := range g.SubjectIDs() {
		s := model.SubjectStats{
			Name:    fmt.Sprintf("Hero %d", i+1),
			WinRate: model.Float(round1(40 + g.rng.Float64()*20)),
		}
		if g.rng.Float64() >= g.cfg.MissingPct {
			s.PickRate = model.Float(round1(1 + g.rng.Float64()*19))
		}
		t[id] = s
	}
	return t
}

// Vary returns a copy of base with every present value shifted by a
// uniform delta in [-Spread, Spread].
func (g *Generator) Vary(base model.SnapshotTable) model.SnapshotTable {
	out := make(model.SnapshotTable, len(base))
	for _, id := range base.SubjectIDs() {
		s := base[id]
		if s.WinRate != nil {
			s.WinRate = model.Float(round1(*s.WinRate + g.delta()))
		}
		if s.PickRate != nil {
			s.PickRate = model.Float(math.Max(0, round1(*s.PickRate+g.delta())))
		}
		out[id] = s
	}
	return out
}

// Tables generates the baseline plus one varied table per partition,
// keyed by partition ID.
func (g *Generator) Tables(baseline string) map[string]model.SnapshotTable {
	base := g.Baseline()
	out := map[string]model.SnapshotTable{baseline: base}
	for _, id := range g.PartitionIDs() {
		out[id] = g.Vary(base)
	}
	return out
}

func (g *Generator) delta() float64 {
	return (g.rng.Float64()*2 - 1) * g.cfg.Spread
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
